package mcp

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/tools"
)

// Client manages the connection to a single MCP server subprocess. The
// server's tools join an agent's registry under "<server>:<tool>" names.
type Client struct {
	Name  string
	cmd   *exec.Cmd
	conn  *mcpsdk.ClientSession
	tools map[string]*Tool
	log   *logrus.Entry
}

// NewClient starts the MCP server subprocess and discovers its tools.
func NewClient(ctx context.Context, name, command string, args []string, log *logrus.Entry) (*Client, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "aide", Version: "v1.0.0"}, nil)
	conn, err := mcpClient.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		cmd.Process.Kill()
		return nil, errors.Wrapf(err, "failed to connect to MCP server %q", name)
	}
	client := &Client{
		Name:  name,
		cmd:   cmd,
		conn:  conn,
		tools: make(map[string]*Tool),
		log:   log.WithField("mcp_server", name),
	}

	toolListParams := &mcpsdk.ListToolsParams{}
	for {
		toolList, err := conn.ListTools(ctx, toolListParams)
		if err != nil {
			cmd.Process.Kill()
			return nil, errors.Wrapf(err, "failed to list tools from MCP server %q", name)
		}
		for _, t := range toolList.Tools {
			client.tools[t.Name] = &Tool{
				serverName:  name,
				toolName:    t.Name,
				description: t.Description,
				schema:      schemaFromDeclaration(t.InputSchema),
				client:      client,
			}
		}
		if toolList.NextCursor == "" {
			break
		}
		toolListParams.Cursor = toolList.NextCursor
	}

	client.log.WithField("tools", len(client.tools)).Info("initialized MCP client")
	return client, nil
}

// Tools returns every tool the server declared.
func (c *Client) Tools() []tools.Tool {
	out := make([]tools.Tool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t)
	}
	return out
}

// Stop terminates the MCP server subprocess.
func (c *Client) Stop() error {
	if c.conn != nil {
		c.conn.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		c.log.Info("terminating MCP server")
		return c.cmd.Process.Kill()
	}
	return nil
}

// Tool is an external MCP server capability surfaced through the internal
// tools.Tool contract.
type Tool struct {
	serverName  string
	toolName    string
	description string
	schema      *tools.Schema
	client      *Client
}

// Name returns the fully qualified name in the form "<server>:<tool>".
func (t *Tool) Name() string {
	return t.serverName + ":" + t.toolName
}

func (t *Tool) Description() string {
	return t.description
}

func (t *Tool) Schema() *tools.Schema {
	return t.schema
}

// Execute sends the call to the MCP server and concatenates the text
// content of the result.
func (t *Tool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	result, err := t.client.conn.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.toolName,
		Arguments: args,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to call tool %q", t.Name())
	}
	op := ""
	for _, c := range result.Content {
		if text, ok := c.(*mcpsdk.TextContent); ok {
			op += text.Text
		}
	}
	if result.IsError {
		return "", errors.New("tool %q reported an error: %s", t.Name(), op)
	}
	return op, nil
}

// schemaFromDeclaration maps the server's declared input schema into the
// internal Schema type via its JSON form.
func schemaFromDeclaration(declared any) *tools.Schema {
	if declared == nil {
		return tools.ObjectSchema(nil)
	}
	data, err := json.Marshal(declared)
	if err != nil {
		return tools.ObjectSchema(nil)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return tools.ObjectSchema(nil)
	}
	return tools.SchemaFromMap(m)
}
