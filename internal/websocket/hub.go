package websocket

import (
	"bytes"
	"encoding/json"
	"sync"
	"sync/atomic"

	"chainarb/internal/models"
	"chainarb/pkg/utils"
)

// jsonBufferPool убирает аллокации буфера на каждый Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями админ-панели
//
// Поток событий односторонний, от сервера к панели: прогоны, алерты,
// смена блокировки. Broadcast неблокирующий - медленный клиент
// отключается, переполненный канал роняет сообщение, а не пайплайн.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}

	dropped atomic.Int64

	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			utils.L().Debug("ws клиент подключен", utils.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			utils.L().Debug("ws клиент отключен", utils.Int("total", total))

		case message := <-h.broadcast:
			// Список клиентов копируется под коротким RLock, отправка
			// идет без блокировки, чтобы не тормозить register/unregister
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// Stop останавливает главный цикл и отключает всех клиентов
func (h *Hub) Stop() {
	close(h.stop)
}

// Broadcast сериализует и отправляет сообщение всем клиентам
//
// Неблокирующий: при переполненном канале сообщение роняется
// и увеличивается счетчик потерь.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		utils.L().Error("ошибка сериализации ws сообщения", utils.Err(err))
		jsonBufferPool.Put(buf)
		return
	}

	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	h.BroadcastRaw(msgCopy)
}

// BroadcastRaw отправляет уже сериализованное сообщение
func (h *Hub) BroadcastRaw(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastRunUpdate отправляет обновление прогона
func (h *Hub) BroadcastRunUpdate(run *models.Run) {
	h.Broadcast(NewRunUpdateMessage(run))
}

// BroadcastAlert отправляет алерт аномалии
func (h *Hub) BroadcastAlert(alert *models.Alert) {
	h.Broadcast(NewAlertMessage(alert))
}

// BroadcastLockUpdate отправляет смену состояния блокировки
func (h *Hub) BroadcastLockUpdate(settings *models.SystemSettings) {
	h.Broadcast(NewLockUpdateMessage(settings))
}

// BroadcastScanReport отправляет итог сканирования
func (h *Hub) BroadcastScanReport(report interface{}) {
	h.Broadcast(NewScanReportMessage(report))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages возвращает количество сообщений, потерянных
// из-за переполнения канала broadcast
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}
