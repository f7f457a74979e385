package memory

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/session"
	"github.com/m4xw311/aide/task"
)

const (
	messagesKey    = "aide:messages"
	tasksKey       = "aide:tasks"
	preferencesKey = "aide:preferences"
)

// RedisJournal persists the journal in Redis. Messages live in a list,
// tasks and preferences in hashes.
type RedisJournal struct {
	client *redis.Client
}

// NewRedisJournal connects to Redis and verifies the connection.
func NewRedisJournal(ctx context.Context, addr, password string, db int) (*RedisJournal, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", addr)
	}
	return &RedisJournal{client: client}, nil
}

// Close releases the underlying connection pool.
func (j *RedisJournal) Close() error {
	return j.client.Close()
}

func (j *RedisJournal) AddMessage(ctx context.Context, msg session.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize message")
	}
	return errors.Wrapf(j.client.RPush(ctx, messagesKey, data).Err(), "failed to append message")
}

func (j *RedisJournal) RecentMessages(ctx context.Context, n int) ([]session.Message, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := j.client.LRange(ctx, messagesKey, int64(-n), -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read recent messages")
	}
	messages := make([]session.Message, 0, len(raw))
	for _, item := range raw {
		var msg session.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse stored message")
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (j *RedisJournal) StoreTask(ctx context.Context, t *task.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize task %s", t.ID)
	}
	return errors.Wrapf(j.client.HSet(ctx, tasksKey, t.ID, data).Err(), "failed to store task %s", t.ID)
}

func (j *RedisJournal) Task(ctx context.Context, id string) (*task.Task, error) {
	data, err := j.client.HGet(ctx, tasksKey, id).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load task %s", id)
	}
	var t task.Task
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, errors.Wrapf(err, "failed to parse stored task %s", id)
	}
	return &t, nil
}

func (j *RedisJournal) Preference(ctx context.Context, key string) (string, error) {
	v, err := j.client.HGet(ctx, preferencesKey, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to load preference %q", key)
	}
	return v, nil
}

func (j *RedisJournal) SetPreference(ctx context.Context, key, value string) error {
	return errors.Wrapf(j.client.HSet(ctx, preferencesKey, key, value).Err(), "failed to store preference %q", key)
}
