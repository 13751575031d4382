package entity

import "time"

// Channel через какой фронтенд пришло изображение
type Channel string

const (
	ChannelAPI       Channel = "api"
	ChannelDashboard Channel = "dashboard"
	ChannelStream    Channel = "stream"
	ChannelTelegram  Channel = "telegram"
	ChannelCLI       Channel = "cli"
	ChannelWebcam    Channel = "webcam"
)

// DetectionRecord строка истории: одно лицо на строку
type DetectionRecord struct {
	ID          uint64
	CreatedAt   time.Time
	Owner       string
	Channel     Channel
	Face        FaceRecord
	SnapshotKey string
}

// HistoryStats агрегаты истории для дашборда
type HistoryStats struct {
	Total    int            `json:"total"`
	ByGender map[string]int `json:"byGender"`
	ByAge    map[string]int `json:"byAge"`
	BySource map[Source]int `json:"bySource"`
}
