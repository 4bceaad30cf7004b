package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/models"
	"github.com/rkobroo/Ownrkoapi/internal/repository"
	"github.com/rkobroo/Ownrkoapi/internal/worker"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 跨域由 CORS 中间件控制
	},
}

// Subscriber 订阅进度频道, 返回消息通道与取消函数
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan string, func() error, error)
}

// Manager WebSocket 连接管理器
type Manager struct {
	subscriber Subscriber
	store      repository.JobStore
	logger     *zap.Logger
	active     atomic.Int64
}

// NewManager 创建 WebSocket 管理器
func NewManager(subscriber Subscriber, store repository.JobStore, logger *zap.Logger) *Manager {
	return &Manager{
		subscriber: subscriber,
		store:      store,
		logger:     logger,
	}
}

// ActiveConnections 当前连接数
func (m *Manager) ActiveConnections() int64 {
	return m.active.Load()
}

// HandleConnection 处理 /api/ws/progress?job_id= 连接
func (m *Manager) HandleConnection(c *gin.Context) {
	jobID := c.Query("job_id")
	if jobID == "" {
		models.BadRequest(c, "job_id is required", "")
		return
	}

	job, err := m.store.Get(c.Request.Context(), jobID)
	if err != nil {
		m.logger.Error("failed to load job", zap.String("job_id", jobID), zap.Error(err))
		models.InternalError(c, "failed to load download job")
		return
	}
	if job == nil {
		models.NotFound(c, "download job not found")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		m.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	m.active.Add(1)
	log := m.logger.With(zap.String("job_id", jobID))
	log.Info("websocket connection established")
	defer func() {
		conn.Close()
		m.active.Add(-1)
		log.Info("websocket connection closed")
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 先订阅再发送快照, 避免漏掉两者之间的消息
	var messages <-chan string
	if !job.Status.IsTerminal() {
		ch, unsubscribe, err := m.subscriber.Subscribe(ctx, worker.ProgressChannel(jobID))
		if err != nil {
			log.Error("failed to subscribe progress channel", zap.Error(err))
			m.closeWith(conn, websocket.CloseInternalServerErr, "progress unavailable")
			return
		}
		defer unsubscribe()
		messages = ch
	}

	if err := m.write(conn, job.ToProgress()); err != nil {
		log.Debug("failed to send snapshot", zap.Error(err))
		return
	}
	if job.Status.IsTerminal() {
		m.closeWith(conn, websocket.CloseNormalClosure, string(job.Status))
		return
	}

	go m.readPump(conn, cancel)
	go m.heartbeat(ctx, conn)

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-messages:
			if !ok {
				return
			}
			var msg models.ProgressMessage
			if err := json.Unmarshal([]byte(payload), &msg); err != nil {
				log.Warn("failed to parse progress message", zap.Error(err))
				continue
			}
			if err := m.write(conn, &msg); err != nil {
				log.Debug("failed to send progress", zap.Error(err))
				return
			}
			if msg.Status.IsTerminal() {
				m.closeWith(conn, websocket.CloseNormalClosure, string(msg.Status))
				return
			}
		}
	}
}

func (m *Manager) write(conn *websocket.Conn, msg *models.ProgressMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func (m *Manager) closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(writeWait))
}

// readPump 处理 pong 与客户端关闭
func (m *Manager) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// heartbeat 发送心跳
func (m *Manager) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
