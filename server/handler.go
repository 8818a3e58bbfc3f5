package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hupe1980/genui/session"
)

// ChatRequest is the body of the chat endpoints. A missing session id starts
// a new session.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Input     string `json:"input" binding:"required"`
}

func (r *ChatRequest) normalize() {
	if r.SessionID == "" {
		r.SessionID = uuid.NewString()
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// streamHandler streams the sink of one turn as server-sent events:
// "invocation" first, then one "update" per sink update, then "result" or
// "error". Closing the connection cancels the turn.
func (s *Server) streamHandler(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.normalize()

	ctx := c.Request.Context()
	inv, err := s.engine.Invoke(ctx, req.SessionID, req.Input)
	if err != nil {
		invokeError(c, err)
		return
	}

	c.Header("X-Invocation-ID", inv.ID)
	c.SSEvent("invocation", gin.H{"invocation_id": inv.ID, "session_id": req.SessionID})

	updates := inv.Sink.Updates(ctx)
	keepalive := time.NewTicker(s.opts.KeepAlive)
	defer keepalive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case u, ok := <-updates:
			if !ok {
				value, err := inv.Result.Await(ctx)
				if err != nil {
					c.SSEvent("error", gin.H{"invocation_id": inv.ID, "message": err.Error()})
					return false
				}
				c.SSEvent("result", gin.H{"invocation_id": inv.ID, "value": value})
				return false
			}
			c.SSEvent("update", u)
			return true
		case <-keepalive.C:
			c.SSEvent("ping", "keepalive")
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// invokeHandler runs one turn to completion and returns the settled UI state.
func (s *Server) invokeHandler(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.normalize()

	out, err := s.engine.InvokeSync(c.Request.Context(), req.SessionID, req.Input)
	if out == nil {
		invokeError(c, err)
		return
	}

	data := gin.H{
		"session_id":    req.SessionID,
		"invocation_id": out.InvocationID,
		"nodes":         out.Nodes,
		"value":         out.Value,
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": "invocation_failed", "message": err.Error()},
			"data":    data,
		})
		return
	}
	success(c, data)
}

func (s *Server) listInvocations(c *gin.Context) {
	success(c, gin.H{"invocations": s.engine.ActiveInvocations()})
}

func (s *Server) stopInvocation(c *gin.Context) {
	id := c.Param("id")
	if err := s.engine.StopInvocation(id); err != nil {
		notFound(c, err.Error())
		return
	}
	success(c, gin.H{"invocation_id": id, "stopped": true})
}

func (s *Server) getSession(c *gin.Context) {
	sess, err := s.engine.Sessions().Lookup(c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			notFound(c, err.Error())
			return
		}
		failure(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	success(c, sess)
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.engine.Sessions().Delete(c.Param("id")); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			notFound(c, err.Error())
			return
		}
		failure(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	success(c, gin.H{"session_id": c.Param("id"), "deleted": true})
}
