package queue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shashiranjanraj/storefront/pkg/queue"
)

var (
	echoCalls atomic.Int32
	failCalls atomic.Int32
)

type echoJob struct {
	Val string `json:"val"`
}

func (echoJob) Name() string { return "test.echo" }

func (j *echoJob) Handle(context.Context) error {
	if j.Val == "" {
		return errors.New("payload lost")
	}
	echoCalls.Add(1)
	return nil
}

type failJob struct{}

func (failJob) Name() string { return "test.fail" }

func (*failJob) Handle(context.Context) error {
	failCalls.Add(1)
	return errors.New("always fails")
}

func newManager() *queue.Manager {
	m := queue.NewManager(queue.NewMemoryDriver())
	m.SetRetry(3, 0)
	m.Register(func() queue.Job { return &echoJob{} })
	m.Register(func() queue.Job { return &failJob{} })
	return m
}

func TestDispatchAndWorkOnce(t *testing.T) {
	m := newManager()
	ctx := context.Background()
	before := echoCalls.Load()

	require.NoError(t, m.Dispatch(ctx, &echoJob{Val: "hello"}))
	require.NoError(t, m.WorkOnce(ctx))

	assert.Equal(t, before+1, echoCalls.Load())
	assert.Empty(t, m.FailedJobs())
}

func TestFailedJobRetriesThenRecorded(t *testing.T) {
	m := newManager()
	ctx := context.Background()
	before := failCalls.Load()

	require.NoError(t, m.Dispatch(ctx, &failJob{}))
	require.NoError(t, m.WorkOnce(ctx))

	assert.Equal(t, before+3, failCalls.Load())
	failed := m.FailedJobs()
	require.Len(t, failed, 1)
	assert.Equal(t, "test.fail", failed[0].Type)
	assert.Equal(t, 3, failed[0].Attempts)
}

func TestFailedJobPersistedToDB(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:queue_failed?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&queue.FailedJobRecord{}))
	queue.UseDB(db)
	t.Cleanup(func() { queue.UseDB(nil) })

	m := newManager()
	ctx := context.Background()
	require.NoError(t, m.Dispatch(ctx, &failJob{}))
	require.NoError(t, m.WorkOnce(ctx))

	var rows []queue.FailedJobRecord
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "test.fail", rows[0].JobType)
	assert.Equal(t, "always fails", rows[0].Error)
}

func TestUnregisteredJobIsRecorded(t *testing.T) {
	m := queue.NewManager(queue.NewMemoryDriver())
	ctx := context.Background()

	require.NoError(t, m.Dispatch(ctx, &echoJob{Val: "x"}))
	require.NoError(t, m.WorkOnce(ctx))

	require.Len(t, m.FailedJobs(), 1)
}

func TestWorkersDrainConcurrentDispatch(t *testing.T) {
	m := newManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	before := echoCalls.Load()

	var wg sync.WaitGroup
	wg.Add(20)
	for i := 0; i < 20; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Dispatch(ctx, &echoJob{Val: "c"}))
		}()
	}
	wg.Wait()

	m.StartWorkers(ctx, 2)
	assert.Eventually(t, func() bool { return echoCalls.Load()-before == 20 }, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownDrainsBacklogAfterWorkersStop(t *testing.T) {
	m := newManager()
	ctx, stop := context.WithCancel(context.Background())
	m.StartWorkers(ctx, 2)
	stop()

	before := echoCalls.Load()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Dispatch(context.Background(), &echoJob{Val: "late"}))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := m.Shutdown(drainCtx)
	require.NoError(t, err)

	assert.Equal(t, int32(5), echoCalls.Load()-before)
	assert.LessOrEqual(t, n, 5)
	assert.Empty(t, m.FailedJobs())
}

func TestMemoryDriverFull(t *testing.T) {
	d := queue.NewMemoryDriver()
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		require.NoError(t, d.Push(ctx, []byte("x")))
	}
	assert.ErrorIs(t, d.Push(ctx, []byte("x")), queue.ErrQueueFull)
	assert.Equal(t, 1000, d.Len())
}
