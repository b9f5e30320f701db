package websocketPkg

import (
	"DriverWatch/pkg/scratch"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWorker answers every binary frame with reply(frame).
func fakeWorker(t *testing.T, reply func(frame []byte) string) *httptest.Server {
	srv, _ := countingWorker(t, reply)
	return srv
}

// countingWorker is fakeWorker that also counts accepted connections.
func countingWorker(t *testing.T, reply func(frame []byte) string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	dials := &atomic.Int32{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			messageType, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply(frame))); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, dials
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newClient(t *testing.T, cfg Config) (IWebsocket, scratch.Store) {
	t.Helper()
	store, err := scratch.NewLocal(t.TempDir())
	require.NoError(t, err)

	client := NewAIWebSocketClient(cfg, store, quietLogger())
	t.Cleanup(client.CloseConnections)
	return client, store
}

func TestExtractLandmarks(t *testing.T) {
	received := make(chan []byte, 1)
	srv := fakeWorker(t, func(frame []byte) string {
		received <- frame
		return `{"face_found": true, "landmarks": [[0.1, 0.2], [0.3, 0.4]]}`
	})

	client, _ := newClient(t, Config{FaceMeshURL: wsURL(srv)})

	result, err := client.ExtractLandmarks(context.Background(), []byte{0xFF, 0xD8})
	require.NoError(t, err)

	assert.Equal(t, []byte{0xFF, 0xD8}, <-received)
	assert.True(t, result.FaceFound)
	assert.Len(t, result.Landmarks, 2)
	assert.True(t, client.IsConnected(FaceMeshWorker))
}

func TestExtractLandmarksNoFace(t *testing.T) {
	srv := fakeWorker(t, func([]byte) string { return `{"face_found": false}` })
	client, _ := newClient(t, Config{FaceMeshURL: wsURL(srv)})

	result, err := client.ExtractLandmarks(context.Background(), []byte{1})
	require.NoError(t, err)
	assert.False(t, result.FaceFound)
	assert.Empty(t, result.Landmarks)
}

func TestExtractLandmarksWorkerError(t *testing.T) {
	srv := fakeWorker(t, func([]byte) string { return `{"error": "model crashed"}` })
	client, _ := newClient(t, Config{FaceMeshURL: wsURL(srv)})

	_, err := client.ExtractLandmarks(context.Background(), []byte{1})
	assert.ErrorContains(t, err, "model crashed")
}

func TestDetectObjectsReadsScratch(t *testing.T) {
	received := make(chan []byte, 1)
	srv := fakeWorker(t, func(frame []byte) string {
		received <- frame
		return `{"labels": ["phone", "person"], "confidences": [0.91, 0.88]}`
	})
	client, store := newClient(t, Config{ObjectDetectionURL: wsURL(srv)})

	path, err := store.Save(context.Background(), "frame.jpg", []byte("image-bytes"))
	require.NoError(t, err)

	result, err := client.DetectObjects(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []byte("image-bytes"), <-received)
	assert.Equal(t, []string{"phone", "person"}, result.Labels)
	assert.Equal(t, []float64{0.91, 0.88}, result.Confidences)
}

func TestDetectObjectsMismatchedReply(t *testing.T) {
	srv := fakeWorker(t, func([]byte) string { return `{"labels": ["phone"], "confidences": []}` })
	client, store := newClient(t, Config{ObjectDetectionURL: wsURL(srv)})

	path, err := store.Save(context.Background(), "frame.jpg", []byte("x"))
	require.NoError(t, err)

	_, err = client.DetectObjects(context.Background(), path)
	assert.Error(t, err)
}

func TestExchangeNotConfigured(t *testing.T) {
	client, _ := newClient(t, Config{})

	_, err := client.ExtractLandmarks(context.Background(), []byte{1})
	assert.ErrorIs(t, err, ErrWorkerNotConfigured)
	assert.False(t, client.IsConnected(FaceMeshWorker))
}

func TestExchangeReconnectsAfterDrop(t *testing.T) {
	srv := fakeWorker(t, func([]byte) string { return `{"face_found": false}` })
	client, _ := newClient(t, Config{FaceMeshURL: wsURL(srv)})

	_, err := client.ExtractLandmarks(context.Background(), []byte{1})
	require.NoError(t, err)

	require.NoError(t, client.Reconnect(FaceMeshWorker))

	_, err = client.ExtractLandmarks(context.Background(), []byte{1})
	require.NoError(t, err)
}

func TestExchangeHonoursContextDeadline(t *testing.T) {
	srv := fakeWorker(t, func([]byte) string {
		time.Sleep(500 * time.Millisecond)
		return `{"face_found": false}`
	})
	client, _ := newClient(t, Config{FaceMeshURL: wsURL(srv)})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.ExtractLandmarks(ctx, []byte{1})
	assert.Error(t, err)
}

func TestQueuedRequestExpiryKeepsConnection(t *testing.T) {
	srv, dials := countingWorker(t, func([]byte) string {
		time.Sleep(300 * time.Millisecond)
		return `{"face_found": false}`
	})
	client, _ := newClient(t, Config{FaceMeshURL: wsURL(srv)})

	// Let the background dial finish so only exchanges touch the worker.
	require.Eventually(t, func() bool { return client.IsConnected(FaceMeshWorker) }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, int32(1), dials.Load())

	inFlight := make(chan error, 1)
	go func() {
		_, err := client.ExtractLandmarks(context.Background(), []byte{1})
		inFlight <- err
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := client.ExtractLandmarks(ctx, []byte{2})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, client.IsConnected(FaceMeshWorker))

	require.NoError(t, <-inFlight)

	_, err = client.ExtractLandmarks(context.Background(), []byte{3})
	require.NoError(t, err)
	assert.Equal(t, int32(1), dials.Load())
	assert.True(t, client.IsConnected(FaceMeshWorker))
}
