package rest

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"genderage/internal/domain/entity"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 16,
	WriteBufferSize: 1 << 12,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ConnectedClient одно websocket-соединение
type ConnectedClient struct {
	remote string
}

// ConnectedClients у пользователя может быть несколько соединений
type ConnectedClients []*ConnectedClient

func (s *Server) addClient(id string, c *ConnectedClient) {
	s.clients.Upsert(id, ConnectedClients{c}, func(exist bool, valueInMap, newValue ConnectedClients) ConnectedClients {
		if exist {
			return append(valueInMap, c)
		}
		return newValue
	})
}

func (s *Server) removeClient(id string, c *ConnectedClient) {
	s.clients.Upsert(id, ConnectedClients{}, func(exist bool, valueInMap, newValue ConnectedClients) ConnectedClients {
		if !exist {
			return newValue
		}
		for _, oc := range valueInMap {
			if oc == c {
				continue
			}
			newValue = append(newValue, oc)
		}
		return newValue
	})
}

// StreamCount число открытых потоков
func (s *Server) StreamCount() int {
	n := 0
	for item := range s.clients.IterBuffered() {
		n += len(item.Val)
	}
	return n
}

// StreamItem одно лицо в ответе на кадр. box: [ymin, xmin, ymax, xmax] в долях кадра.
type StreamItem struct {
	Label            string     `json:"label"`
	Confidence       float32    `json:"confidence"`
	Box              [4]float32 `json:"box"`
	Gender           string     `json:"gender"`
	GenderConfidence float64    `json:"gender_confidence"`
	AgeGroup         string     `json:"age_group"`
	AgeConfidence    float64    `json:"age_confidence"`
	Source           string     `json:"source"`
}

func streamItems(result *entity.DetectionResult) []StreamItem {
	items := make([]StreamItem, 0, len(result.Faces))
	w, h := float32(result.ImageWidth), float32(result.ImageHeight)
	for _, f := range result.Faces {
		item := StreamItem{
			Label:            f.Gender.Label + ", " + f.Age.Label,
			Confidence:       float32(f.Gender.Confidence / 100),
			Gender:           f.Gender.Label,
			GenderConfidence: f.Gender.Confidence,
			AgeGroup:         f.Age.Label,
			AgeConfidence:    f.Age.Confidence,
			Source:           string(f.Source),
		}
		if w > 0 && h > 0 {
			item.Box = [4]float32{
				float32(f.Box.Y) / h,
				float32(f.Box.X) / w,
				float32(f.Box.Y+f.Box.Height) / h,
				float32(f.Box.X+f.Box.Width) / w,
			}
		}
		items = append(items, item)
	}
	return items
}

// Stream GET /ws: бинарные сообщения: JPEG-кадры, в ответ JSON-массив лиц.
// Текстовые команды: "ping" и "capture" (сохранить последний результат в историю).
func (s *Server) Stream(c *gin.Context, account *entity.Account) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Print("upgrade:", err)
		return
	}
	defer conn.Close()

	client := &ConnectedClient{remote: c.Request.RemoteAddr}
	s.addClient(account.Username, client)
	defer s.removeClient(account.Username, client)

	ctx := c.Request.Context()
	var last *entity.DetectionResult

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("read err:", err)
			}
			return
		}

		if mt == websocket.TextMessage {
			switch string(message) {
			case "ping":
				_ = conn.WriteMessage(websocket.TextMessage, []byte("pong"))
			case "capture":
				if err := s.detections.Record(ctx, account.Username, entity.ChannelStream, last, ""); err != nil {
					log.Printf("Stream capture error: %v", err)
				}
			}
			continue
		}

		result, _, err := s.detections.Detect(ctx, message)
		if err != nil {
			log.Printf("Stream frame error: %v", err)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid frame"}`)); err != nil {
				return
			}
			continue
		}
		last = result

		data, err := json.Marshal(streamItems(result))
		if err != nil {
			log.Println("JSON encode error:", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Println("write err:", err)
			return
		}
	}
}
