package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const reviewJobs = "dealscan:review_jobs"

// ErrEmpty is returned by PopReviewJob when no job arrived before the
// timeout.
var ErrEmpty = errors.New("queue empty")

type Queue struct {
	client *redis.Client
}

func New(url string) (*Queue, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	return &Queue{client: client}, nil
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *Queue) PushReviewJob(ctx context.Context, reviewID string) error {
	return q.client.LPush(ctx, reviewJobs, reviewID).Err()
}

func (q *Queue) PopReviewJob(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.client.BRPop(ctx, timeout, reviewJobs).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", ErrEmpty
	}
	return res[1], nil
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, reviewJobs).Result()
}

func (q *Queue) Close() error {
	return q.client.Close()
}
