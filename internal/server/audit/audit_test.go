package audit

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, b)
	return &s3.PutObjectOutput{}, nil
}

type recorderFunc func(ctx context.Context, e Event) error

func (f recorderFunc) Record(ctx context.Context, e Event) error { return f(ctx, e) }

func TestNewEvent(t *testing.T) {
	e := NewEvent(ActionLogin, "u1", "10.0.0.1", true)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, CategoryAuth, e.Category)
	assert.Equal(t, ActionLogin, e.Action)
	assert.WithinDuration(t, time.Now(), e.Time, time.Minute)
	assert.NotEqual(t, e.ID, NewEvent(ActionLogin, "u1", "", true).ID)
}

func TestLogRecorder(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewLogRecorder(logging.NewZapLogger(zap.New(core)))

	require.NoError(t, r.Record(context.Background(), NewEvent(ActionLogin, "u1", "ip", true)))
	failed := NewEvent(ActionRefreshFailed, "", "ip", false)
	failed.Detail = "invalid token"
	require.NoError(t, r.Record(context.Background(), failed))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "login", entries[0].ContextMap()["action"])
	assert.Equal(t, "audit", entries[0].ContextMap()["module"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "invalid token", entries[1].ContextMap()["detail"])
}

func TestS3Recorder_Record(t *testing.T) {
	fp := &fakePutter{}
	r := &S3Recorder{client: fp, bucket: "audit-bucket"}

	e := NewEvent(ActionRevoke, "u1", "ip", true)
	e.Time = time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	require.NoError(t, r.Record(context.Background(), e))

	require.Len(t, fp.inputs, 1)
	assert.Equal(t, "audit-bucket", aws.ToString(fp.inputs[0].Bucket))
	assert.Equal(t, "audit/2025/3/7/"+e.ID+".json", aws.ToString(fp.inputs[0].Key))
	assert.Equal(t, "application/json", aws.ToString(fp.inputs[0].ContentType))
	assert.JSONEq(t, `{"id":"`+e.ID+`","time":"2025-03-07T10:00:00Z","category":"auth","action":"revoke","user_id":"u1","ip":"ip","success":true}`, string(fp.bodies[0]))
}

func TestS3Recorder_PutError(t *testing.T) {
	r := &S3Recorder{client: &fakePutter{err: errors.New("bucket gone")}, bucket: "b"}
	err := r.Record(context.Background(), NewEvent(ActionLogin, "", "", true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
}

func TestNewS3Recorder(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew })

	c := &config.Config{S3Region: "us-east-1", S3RootUser: "u", S3RootPassword: "p", S3Bucket: "b", S3BaseEndpoint: "http://minio:9000"}

	t.Run("builds path-style client", func(t *testing.T) {
		loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{Region: "us-east-1"}, nil
		}
		var opts s3.Options
		newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
			for _, fn := range optFns {
				fn(&opts)
			}
			return s3.NewFromConfig(cfg, optFns...)
		}

		r, err := NewS3Recorder(context.Background(), c)
		require.NoError(t, err)
		assert.Equal(t, "b", r.bucket)
		assert.True(t, opts.UsePathStyle)
		assert.Equal(t, "http://minio:9000", aws.ToString(opts.BaseEndpoint))
	})

	t.Run("config error", func(t *testing.T) {
		loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errors.New("no creds")
		}
		_, err := NewS3Recorder(context.Background(), c)
		require.Error(t, err)
	})
}

func TestMulti(t *testing.T) {
	var calls int
	ok := recorderFunc(func(context.Context, Event) error { calls++; return nil })
	bad := recorderFunc(func(context.Context, Event) error { calls++; return errors.New("sink down") })

	require.NoError(t, Multi{ok, ok}.Record(context.Background(), Event{}))
	assert.Equal(t, 2, calls)

	err := Multi{bad, ok}.Record(context.Background(), Event{})
	require.Error(t, err)
	assert.Equal(t, 4, calls, "a failing sink must not stop the others")
}
