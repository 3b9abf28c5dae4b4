package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"questionnaire_editor/client"
	"questionnaire_editor/editor"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type EditorHandler struct {
	registry *editor.Registry
}

func NewEditorHandler(registry *editor.Registry) *EditorHandler {
	return &EditorHandler{registry: registry}
}

type formView struct {
	SessionID string `json:"session_id"`
	editor.Snapshot
}

type updateFieldsRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// submitFormRequest is the body the HTML view posts with its Update button.
type submitFormRequest struct {
	Name        *string `form:"name"`
	Description *string `form:"description"`
}

type updateQuestionRequest struct {
	Field string `json:"field" binding:"required,oneof=question type"`
	Value string `json:"value"`
}

type updateOptionRequest struct {
	Value string `json:"value"`
}

// requestContext carries the caller's token through to the questionnaire API.
func requestContext(c *gin.Context) context.Context {
	return client.WithToken(c.Request.Context(), c.GetString("token"))
}

func (h *EditorHandler) render(c *gin.Context, status int, s *editor.Session) {
	c.Negotiate(status, gin.Negotiate{
		Offered:  []string{binding.MIMEJSON, binding.MIMEHTML},
		HTMLName: "edit.tmpl",
		Data:     formView{SessionID: s.ID, Snapshot: s.Form.Snapshot()},
	})
}

func (h *EditorHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, editor.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Editor session not found"})
	case errors.Is(err, editor.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Editor session belongs to another user"})
	case errors.Is(err, editor.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": "Questionnaire is not ready for editing"})
	case errors.Is(err, editor.ErrSubmitInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "An update is already in progress"})
	case errors.Is(err, editor.ErrUnknownField), errors.Is(err, editor.ErrInvalidType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("Error handling editor request: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process editor request"})
	}
}

func questionKey(c *gin.Context) (int64, bool) {
	key, err := strconv.ParseInt(c.Param("key"), 10, 64)
	if err != nil || key <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid question key"})
		return 0, false
	}
	return key, true
}

func optionIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid option index"})
		return 0, false
	}
	return index, true
}

// edit applies fn to the session's form and responds with the new state.
func (h *EditorHandler) edit(c *gin.Context, status int, fn func(*editor.Form) error) {
	s, err := h.registry.Edit(requestContext(c), c.GetInt("userID"), c.Param("sid"), fn)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, status, s)
}

// Index is the root route the editor returns to after a successful update.
func (h *EditorHandler) Index(c *gin.Context) {
	c.Negotiate(http.StatusOK, gin.Negotiate{
		Offered:  []string{binding.MIMEJSON, binding.MIMEHTML},
		HTMLName: "index.tmpl",
		Data:     gin.H{"sessions": h.registry.List(c.GetInt("userID"))},
	})
}

// OpenEditor starts an editor session for the questionnaire in the route.
// A failed fetch still opens an empty session whose status explains the error.
func (h *EditorHandler) OpenEditor(c *gin.Context) {
	quizID := c.Param("id")
	s, err := h.registry.Open(requestContext(c), c.GetInt("userID"), quizID)
	if err != nil {
		log.Printf("Error loading questionnaire %s for editing: %v", quizID, err)
	}
	h.render(c, http.StatusOK, s)
}

func (h *EditorHandler) GetEditor(c *gin.Context) {
	s, err := h.registry.Get(requestContext(c), c.GetInt("userID"), c.Param("sid"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, s)
}

func (h *EditorHandler) UpdateFields(c *gin.Context) {
	var req updateFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.edit(c, http.StatusOK, func(f *editor.Form) error {
		if req.Name != nil {
			if err := f.SetName(*req.Name); err != nil {
				return err
			}
		}
		if req.Description != nil {
			return f.SetDescription(*req.Description)
		}
		return nil
	})
}

func (h *EditorHandler) AddQuestion(c *gin.Context) {
	h.edit(c, http.StatusCreated, func(f *editor.Form) error {
		_, err := f.AddQuestion()
		return err
	})
}

func (h *EditorHandler) UpdateQuestion(c *gin.Context) {
	key, ok := questionKey(c)
	if !ok {
		return
	}
	var req updateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.edit(c, http.StatusOK, func(f *editor.Form) error {
		return f.UpdateQuestion(key, editor.Field(req.Field), req.Value)
	})
}

func (h *EditorHandler) RemoveQuestion(c *gin.Context) {
	key, ok := questionKey(c)
	if !ok {
		return
	}
	h.edit(c, http.StatusOK, func(f *editor.Form) error {
		return f.RemoveQuestion(key)
	})
}

func (h *EditorHandler) AddOption(c *gin.Context) {
	key, ok := questionKey(c)
	if !ok {
		return
	}
	h.edit(c, http.StatusCreated, func(f *editor.Form) error {
		return f.AddOption(key)
	})
}

func (h *EditorHandler) UpdateOption(c *gin.Context) {
	key, ok := questionKey(c)
	if !ok {
		return
	}
	index, ok := optionIndex(c)
	if !ok {
		return
	}
	var req updateOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.edit(c, http.StatusOK, func(f *editor.Form) error {
		return f.UpdateOption(key, index, req.Value)
	})
}

func (h *EditorHandler) RemoveOption(c *gin.Context) {
	key, ok := questionKey(c)
	if !ok {
		return
	}
	index, ok := optionIndex(c)
	if !ok {
		return
	}
	h.edit(c, http.StatusOK, func(f *editor.Form) error {
		return f.RemoveOption(key, index)
	})
}

// Submit sends the questionnaire upstream and redirects to the root route on
// success. Failures re-render the form with its status message.
func (h *EditorHandler) Submit(c *gin.Context) {
	if ok := h.applySubmittedFields(c); !ok {
		return
	}
	path, s, err := h.registry.Submit(requestContext(c), c.GetInt("userID"), c.Param("sid"))
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, path)
	case errors.Is(err, editor.ErrInvalid):
		h.render(c, http.StatusUnprocessableEntity, s)
	case s != nil && !errors.Is(err, editor.ErrNotReady) && !errors.Is(err, editor.ErrSubmitInProgress):
		h.render(c, http.StatusBadGateway, s)
	default:
		h.fail(c, err)
	}
}

// applySubmittedFields copies name and description from a posted HTML form
// into the session before it is sent. JSON submits carry no body.
func (h *EditorHandler) applySubmittedFields(c *gin.Context) bool {
	ct := c.ContentType()
	if ct != binding.MIMEPOSTForm && ct != binding.MIMEMultipartPOSTForm {
		return true
	}
	var req submitFormRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	if req.Name == nil && req.Description == nil {
		return true
	}
	_, err := h.registry.Edit(requestContext(c), c.GetInt("userID"), c.Param("sid"), func(f *editor.Form) error {
		if req.Name != nil {
			if err := f.SetName(*req.Name); err != nil {
				return err
			}
		}
		if req.Description != nil {
			return f.SetDescription(*req.Description)
		}
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return false
	}
	return true
}

func (h *EditorHandler) CloseEditor(c *gin.Context) {
	if err := h.registry.Close(requestContext(c), c.GetInt("userID"), c.Param("sid")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
