// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Corphon/StoryWeaverMCP/internal/services"
	"github.com/Corphon/StoryWeaverMCP/internal/utils"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 本地工作室场景，允许任意来源
		return true
	},
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

// WebSocketConnection 定义 WebSocket 连接的接口，便于测试替换
type WebSocketConnection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// WebSocketClient 表示一个订阅项目进度的客户端连接
type WebSocketClient struct {
	conn      WebSocketConnection
	projectID string
	send      chan []byte
	closed    int32
	createdAt time.Time
}

// Close 安全关闭客户端连接
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// IsClosed 检查连接是否已关闭
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// WebSocketManager 管理按项目分组的进度推送连接
// 每个有订阅者的项目有一个转发协程，把进度板的更新广播给房间内的连接
type WebSocketManager struct {
	mu       sync.RWMutex
	rooms    map[string]map[*WebSocketClient]bool
	stops    map[string]chan struct{}
	progress *services.ProgressService
}

// 全局 WebSocket 管理器
var wsManager = &WebSocketManager{
	rooms: make(map[string]map[*WebSocketClient]bool),
	stops: make(map[string]chan struct{}),
}

// InitProgressHub 绑定进度服务后才能开始转发
func InitProgressHub(progress *services.ProgressService) {
	wsManager.mu.Lock()
	defer wsManager.mu.Unlock()
	wsManager.progress = progress
}

// register 将连接加入项目房间，首个连接启动转发协程
func (m *WebSocketManager) register(client *WebSocketClient) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[client.projectID]
	if !ok {
		room = make(map[*WebSocketClient]bool)
		m.rooms[client.projectID] = room
	}
	room[client] = true

	if _, running := m.stops[client.projectID]; !running && m.progress != nil {
		stop := make(chan struct{})
		m.stops[client.projectID] = stop
		go m.forward(client.projectID, stop)
	}
}

// unregister 将连接移出房间，房间空了就停止转发
func (m *WebSocketManager) unregister(client *WebSocketClient) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[client.projectID]
	if !ok {
		return
	}
	if room[client] {
		delete(room, client)
		client.Close()
	}
	if len(room) == 0 {
		delete(m.rooms, client.projectID)
		if stop, running := m.stops[client.projectID]; running {
			close(stop)
			delete(m.stops, client.projectID)
		}
	}
}

// forward 订阅进度板并把更新广播给房间内的全部连接
func (m *WebSocketManager) forward(projectID string, stop chan struct{}) {
	board := m.progress.Board(projectID)
	updates := board.Subscribe()
	defer board.Unsubscribe(updates)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				continue
			}
			m.broadcastToProject(projectID, data)
		case <-stop:
			return
		}
	}
}

// broadcastToProject 向项目房间内的连接非阻塞推送，慢消费者丢弃
func (m *WebSocketManager) broadcastToProject(projectID string, data []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for client := range m.rooms[projectID] {
		if client.IsClosed() {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}

// ConnectionCount 返回项目房间内的连接数
func (m *WebSocketManager) ConnectionCount(projectID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[projectID])
}

// serveProgressSocket 在升级后的连接上运行读写泵，直到连接断开
func serveProgressSocket(conn WebSocketConnection, projectID string) {
	client := &WebSocketClient{
		conn:      conn,
		projectID: projectID,
		send:      make(chan []byte, 32),
		createdAt: time.Now(),
	}

	wsManager.register(client)

	go writePump(client)
	readPump(client)
}

// writePump 将待发送数据写入连接，周期性发送ping
func writePump(client *WebSocketClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		wsManager.unregister(client)
	}()

	for {
		select {
		case data, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 丢弃入站消息，只用于探测断开和处理pong
func readPump(client *WebSocketClient) {
	defer wsManager.unregister(client)

	client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.GetLogger().Debug("WebSocket连接异常断开", map[string]interface{}{
					"project_id": client.projectID,
					"error":      err.Error(),
				})
			}
			return
		}
	}
}
