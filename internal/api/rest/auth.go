package rest

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	app "genderage/internal/application"
	"genderage/internal/domain/entity"
)

const sessionUserKey = "user"

// HandlerFunc обработчик с уже проверенной учётной записью
type HandlerFunc func(c *gin.Context, account *entity.Account)

// Router обёртка над gin.Engine: проверяет сессию и подгружает учётную запись
type Router struct {
	Base     *gin.Engine
	accounts *app.AccountService
}

func (r *Router) baseExec(c *gin.Context, handler HandlerFunc, allowAPIKey bool) {
	account := r.sessionAccount(c)
	if account == nil && allowAPIKey {
		account = r.apiKeyAccount(c)
	}
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access denied"})
		return
	}
	handler(c, account)
}

func (r *Router) sessionAccount(c *gin.Context) *entity.Account {
	if r.accounts == nil {
		return nil
	}
	username, ok := sessions.Default(c).Get(sessionUserKey).(string)
	if !ok || username == "" {
		return nil
	}
	account, err := r.accounts.ByUsername(c.Request.Context(), username)
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) {
			log.Printf("Session lookup error: %v", err)
		}
		return nil
	}
	return account
}

func (r *Router) apiKeyAccount(c *gin.Context) *entity.Account {
	if r.accounts == nil {
		return nil
	}
	account, err := r.accounts.Authenticate(c.Request.Context(), c.Query("api_key"))
	if err != nil {
		return nil
	}
	return account
}

func (r *Router) POST(path string, handler HandlerFunc) {
	r.Base.POST(path, func(c *gin.Context) {
		r.baseExec(c, handler, false)
	})
}

func (r *Router) GET(path string, handler HandlerFunc) {
	r.Base.GET(path, func(c *gin.Context) {
		r.baseExec(c, handler, false)
	})
}

// GETWithAPIKey принимает сессию или ?api_key=
func (r *Router) GETWithAPIKey(path string, handler HandlerFunc) {
	r.Base.GET(path, func(c *gin.Context) {
		r.baseExec(c, handler, true)
	})
}

func loginSession(c *gin.Context, username string) error {
	session := sessions.Default(c)
	session.Set(sessionUserKey, username)
	return session.Save()
}

func logoutSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Delete(sessionUserKey)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	return session.Save()
}
