package rest

import (
	"encoding/base64"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	app "genderage/internal/application"
	"genderage/internal/domain/entity"
)

const (
	messageFacesFound = "faces detected"
	messageNoFaces    = "no face detected"
)

// FaceJSON одно лицо в ответе /predict и /api/detect
type FaceJSON struct {
	Box              BoxJSON `json:"box"`
	Gender           string  `json:"gender"`
	GenderConfidence float64 `json:"gender_confidence"`
	AgeGroup         string  `json:"age_group"`
	AgeConfidence    float64 `json:"age_confidence"`
	Source           string  `json:"source"`
}

type BoxJSON struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// PredictResponse тело ответа распознавания
type PredictResponse struct {
	FacesDetected int        `json:"faces_detected"`
	Message       string     `json:"message"`
	Source        string     `json:"source"`
	Results       []FaceJSON `json:"results"`
	Annotated     string     `json:"annotated,omitempty"`
	SnapshotKey   string     `json:"snapshot_key,omitempty"`
}

func newPredictResponse(result *entity.DetectionResult, source entity.Source) PredictResponse {
	resp := PredictResponse{
		FacesDetected: len(result.Faces),
		Message:       messageNoFaces,
		Source:        string(source),
		Results:       make([]FaceJSON, 0, len(result.Faces)),
	}
	if result.HasFaces {
		resp.Message = messageFacesFound
	}
	for _, f := range result.Faces {
		resp.Results = append(resp.Results, FaceJSON{
			Box:              BoxJSON{X: f.Box.X, Y: f.Box.Y, W: f.Box.Width, H: f.Box.Height},
			Gender:           f.Gender.Label,
			GenderConfidence: f.Gender.Confidence,
			AgeGroup:         f.Age.Label,
			AgeConfidence:    f.Age.Confidence,
			Source:           string(f.Source),
		})
	}
	return resp
}

// Health состояние моделей
func (s *Server) Health(c *gin.Context) {
	p := s.detections.Pipeline()
	resp := gin.H{
		"status":  "ok",
		"source":  p.Source(),
		"locator": p.LocatorName(),
		"streams": s.StreamCount(),
	}
	if err := p.LoadErr(); err != nil {
		resp["degraded"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// Predict POST /predict?api_key=K, multipart-поле file
func (s *Server) Predict(c *gin.Context) {
	if s.accounts == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API Key"})
		return
	}
	account, err := s.accounts.Authenticate(c.Request.Context(), c.Query("api_key"))
	if err != nil {
		if !errors.Is(err, entity.ErrInvalidCredentials) {
			log.Printf("API key lookup error: %v", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API Key"})
		return
	}
	s.detectUpload(c, account, entity.ChannelAPI, false)
}

// Detect POST /api/detect из дашборда: тот же ответ плюс размеченный JPEG
func (s *Server) Detect(c *gin.Context, account *entity.Account) {
	s.detectUpload(c, account, entity.ChannelDashboard, true)
}

func (s *Server) detectUpload(c *gin.Context, account *entity.Account, channel entity.Channel, withImage bool) {
	data, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := s.detections.ProcessPhoto(c.Request.Context(), app.PhotoRequest{
		Owner:        account.Username,
		Channel:      channel,
		Data:         data,
		KeepSnapshot: true,
	})
	if errors.Is(err, entity.ErrInvalidImage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image"})
		return
	}
	if err != nil {
		log.Printf("Detection error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "detection failed"})
		return
	}

	resp := newPredictResponse(out.Result, s.detections.Pipeline().Source())
	resp.SnapshotKey = out.SnapshotKey
	if withImage && len(out.Annotated) > 0 {
		resp.Annotated = base64.StdEncoding.EncodeToString(out.Annotated)
	}
	c.JSON(http.StatusOK, resp)
}

func readUpload(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, errors.New("file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadSize))
}

// Login POST /api/login, поля формы username и password
func (s *Server) Login(c *gin.Context) {
	if s.accounts == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access denied"})
		return
	}
	account, err := s.accounts.Login(c.Request.Context(), c.PostForm("username"), c.PostForm("password"))
	if errors.Is(err, entity.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}
	if err != nil {
		log.Printf("Login error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if err := loginSession(c, account.Username); err != nil {
		log.Printf("Session save error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, accountJSON(account))
}

// Logout POST /api/logout
func (s *Server) Logout(c *gin.Context) {
	if err := logoutSession(c); err != nil {
		log.Printf("Session save error: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{})
}

// Me GET /api/me
func (s *Server) Me(c *gin.Context, account *entity.Account) {
	c.JSON(http.StatusOK, accountJSON(account))
}

func accountJSON(a *entity.Account) gin.H {
	return gin.H{
		"username":  a.Username,
		"apiKey":    a.APIKey,
		"createdAt": a.CreatedAt.Unix(),
	}
}

type historyItemJSON struct {
	ID          uint64            `json:"id"`
	CreatedAt   int64             `json:"createdAt"`
	Channel     entity.Channel    `json:"channel"`
	Face        entity.FaceRecord `json:"face"`
	SnapshotKey string            `json:"snapshotKey,omitempty"`
}

// History GET /api/history?limit=N
func (s *Server) History(c *gin.Context, account *entity.Account) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := s.history.List(c.Request.Context(), account.Username, limit)
	if err != nil {
		log.Printf("History error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history is unavailable"})
		return
	}
	items := make([]historyItemJSON, 0, len(records))
	for _, r := range records {
		items = append(items, historyItemJSON{
			ID:          r.ID,
			CreatedAt:   r.CreatedAt.Unix(),
			Channel:     r.Channel,
			Face:        r.Face,
			SnapshotKey: r.SnapshotKey,
		})
	}
	c.JSON(http.StatusOK, items)
}

// Stats GET /api/stats
func (s *Server) Stats(c *gin.Context, account *entity.Account) {
	stats, err := s.history.Stats(c.Request.Context(), account.Username)
	if err != nil {
		log.Printf("Stats error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats are unavailable"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Snapshot GET /api/snapshots/*key
func (s *Server) Snapshot(c *gin.Context, account *entity.Account) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	rc, err := s.detections.OpenSnapshot(c.Request.Context(), account.Username, key)
	if errors.Is(err, entity.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		log.Printf("Snapshot error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot is unavailable"})
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, "image/jpeg", rc, nil)
}
