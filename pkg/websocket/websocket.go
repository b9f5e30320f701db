package websocketPkg

import (
	"DriverWatch/internal/entity"
	"DriverWatch/pkg/scratch"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type WorkerType string

const (
	FaceMeshWorker        WorkerType = "FACE_MESH"
	ObjectDetectionWorker WorkerType = "OBJECT_DETECTION"
)

var ErrWorkerNotConfigured = errors.New("worker URL not configured")

type IWebsocket interface {
	ExtractLandmarks(ctx context.Context, frame []byte) (*entity.LandmarkResult, error)
	DetectObjects(ctx context.Context, imagePath string) (*entity.ObjectDetectionResult, error)
	IsConnected(workerType WorkerType) bool
	Reconnect(workerType WorkerType) error
	CloseConnections()
}

type Config struct {
	FaceMeshURL        string
	ObjectDetectionURL string
	PingInterval       time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

// workerConn serializes request/response exchanges on one connection.
// slot is held for a whole exchange and can be waited on with a context;
// mu only guards conn.
type workerConn struct {
	slot      chan struct{}
	mu        sync.Mutex
	conn      *websocket.Conn
	url       string
	connected atomic.Bool
}

func newWorkerConn(url string) *workerConn {
	return &workerConn{slot: make(chan struct{}, 1), url: url}
}

// acquire waits for the exchange slot or until ctx is done.
func (w *workerConn) acquire(ctx context.Context) error {
	select {
	case w.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *workerConn) release() {
	<-w.slot
}

// setConn must be called with mu held.
func (w *workerConn) setConn(conn *websocket.Conn) {
	w.conn = conn
	w.connected.Store(conn != nil)
}

type webSocketClient struct {
	workers      map[WorkerType]*workerConn
	store        scratch.Store
	log          *logrus.Logger
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	closed       chan struct{}
	closeOnce    sync.Once
}

func NewAIWebSocketClient(cfg Config, store scratch.Store, log *logrus.Logger) IWebsocket {
	client := &webSocketClient{
		workers: map[WorkerType]*workerConn{
			FaceMeshWorker:        newWorkerConn(cfg.FaceMeshURL),
			ObjectDetectionWorker: newWorkerConn(cfg.ObjectDetectionURL),
		},
		store:        store,
		log:          log,
		pingInterval: orDefault(cfg.PingInterval, 30*time.Second),
		readTimeout:  orDefault(cfg.ReadTimeout, 10*time.Second),
		writeTimeout: orDefault(cfg.WriteTimeout, 5*time.Second),
		closed:       make(chan struct{}),
	}

	for workerType, w := range client.workers {
		if w.url != "" {
			go client.connectInBackground(workerType)
		}
	}

	return client
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func (c *webSocketClient) connectInBackground(workerType WorkerType) {
	if err := c.Reconnect(workerType); err != nil {
		c.log.Warnf("Initial connection to %s failed: %v. Will retry on demand.", getWorkerName(workerType), err)
		return
	}
	c.log.Infof("Successfully connected to %s service", getWorkerName(workerType))
}

func (c *webSocketClient) IsConnected(workerType WorkerType) bool {
	w, ok := c.workers[workerType]
	if !ok {
		return false
	}
	return w.connected.Load()
}

func (c *webSocketClient) Reconnect(workerType WorkerType) error {
	w, ok := c.workers[workerType]
	if !ok {
		return fmt.Errorf("unknown worker type %s", workerType)
	}

	// Wait for any in-flight exchange so its reply is not cut off.
	if err := w.acquire(context.Background()); err != nil {
		return err
	}
	defer w.release()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		w.conn.Close()
		w.setConn(nil)
	}
	return c.dialLocked(workerType, w)
}

func (c *webSocketClient) dialLocked(workerType WorkerType, w *workerConn) error {
	if w.url == "" {
		return fmt.Errorf("%s: %w", getWorkerName(workerType), ErrWorkerNotConfigured)
	}

	c.log.Debugf("Connecting to %s at %s", getWorkerName(workerType), w.url)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(w.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", w.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	w.setConn(conn)
	go c.keepAlive(workerType, w, conn)

	return nil
}

func (c *webSocketClient) CloseConnections() {
	c.closeOnce.Do(func() { close(c.closed) })

	for _, w := range c.workers {
		w.mu.Lock()
		if w.conn != nil {
			w.conn.Close()
			w.setConn(nil)
		}
		w.mu.Unlock()
	}
}

func (c *webSocketClient) keepAlive(workerType WorkerType, w *workerConn, conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
		}

		w.mu.Lock()
		current := w.conn
		w.mu.Unlock()
		if current != conn {
			return
		}

		// WriteControl may run concurrently with an in-flight exchange.
		if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout)); err != nil {
			c.log.Warnf("Ping failed for %s, marking connection as dead: %v", getWorkerName(workerType), err)
			w.mu.Lock()
			if w.conn == conn {
				w.setConn(nil)
			}
			w.mu.Unlock()
			conn.Close()
			return
		}
	}
}

func (c *webSocketClient) deadline(ctx context.Context, d time.Duration) time.Time {
	t := time.Now().Add(d)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(t) {
		return ctxDeadline
	}
	return t
}

// exchange sends one binary frame and waits for the single reply.
func (c *webSocketClient) exchange(ctx context.Context, workerType WorkerType, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, ok := c.workers[workerType]
	if !ok {
		return nil, fmt.Errorf("unknown worker type %s", workerType)
	}

	// A request that expires while queued leaves the shared connection alone.
	if err := w.acquire(ctx); err != nil {
		return nil, err
	}
	defer w.release()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	if w.conn == nil {
		if err := c.dialLocked(workerType, w); err != nil {
			w.mu.Unlock()
			return nil, fmt.Errorf("cannot connect to %s service: %w", getWorkerName(workerType), err)
		}
	}
	conn := w.conn
	w.mu.Unlock()

	// A reply may still arrive for an abandoned frame, so the connection
	// cannot be reused once a send or read fails.
	drop := func() {
		w.mu.Lock()
		if w.conn == conn {
			w.setConn(nil)
		}
		w.mu.Unlock()
		conn.Close()
	}

	conn.SetWriteDeadline(c.deadline(ctx, c.writeTimeout))
	c.log.Debugf("Sending %s frame of size: %d bytes", getWorkerName(workerType), len(payload))
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		drop()
		return nil, fmt.Errorf("error sending %s frame: %w", getWorkerName(workerType), err)
	}

	conn.SetReadDeadline(c.deadline(ctx, c.readTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		drop()
		return nil, fmt.Errorf("error reading %s message: %w", getWorkerName(workerType), err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	return message, nil
}

func (c *webSocketClient) ExtractLandmarks(ctx context.Context, frame []byte) (*entity.LandmarkResult, error) {
	message, err := c.exchange(ctx, FaceMeshWorker, frame)
	if err != nil {
		return nil, err
	}

	var result entity.LandmarkResult
	if err := json.Unmarshal(message, &result); err != nil {
		return nil, fmt.Errorf("error unmarshaling face mesh response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("face mesh worker: %s", result.Error)
	}
	if result.FaceFound && len(result.Landmarks) == 0 {
		return nil, errors.New("face mesh worker reported a face without landmarks")
	}

	c.log.Debugf("Face Mesh Result: face_found=%v, landmarks=%d", result.FaceFound, len(result.Landmarks))
	return &result, nil
}

func (c *webSocketClient) DetectObjects(ctx context.Context, imagePath string) (*entity.ObjectDetectionResult, error) {
	frame, err := c.store.Read(ctx, imagePath)
	if err != nil {
		return nil, fmt.Errorf("error reading scratch image %s: %w", imagePath, err)
	}

	message, err := c.exchange(ctx, ObjectDetectionWorker, frame)
	if err != nil {
		return nil, err
	}

	var result entity.ObjectDetectionResult
	if err := json.Unmarshal(message, &result); err != nil {
		return nil, fmt.Errorf("error unmarshaling object detection response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("object detection worker: %s", result.Error)
	}
	if len(result.Labels) != len(result.Confidences) {
		return nil, fmt.Errorf("object detection worker returned %d labels and %d confidences",
			len(result.Labels), len(result.Confidences))
	}

	c.log.Debugf("Object Detection Result: labels=%v", result.Labels)
	return &result, nil
}

func getWorkerName(workerType WorkerType) string {
	switch workerType {
	case FaceMeshWorker:
		return "Face Mesh"
	case ObjectDetectionWorker:
		return "Object Detection"
	default:
		return "Unknown Worker"
	}
}
