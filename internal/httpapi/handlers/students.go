package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/persona-chat/internal/chat"
	"github.com/suPer8Hu/persona-chat/internal/common"
	"github.com/suPer8Hu/persona-chat/internal/persona"
)

type studentProfilesReq struct {
	Count       int    `json:"count"`
	StudentName string `json:"student_name"`
}

// StudentProfiles returns one profile when student_name is set, a random
// sample otherwise.
func (h *Handler) StudentProfiles(c *gin.Context) {
	var req studentProfilesReq
	if !h.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()

	if name := strings.TrimSpace(req.StudentName); name != "" {
		p, err := h.Students.Get(ctx, name)
		if err != nil {
			h.fail(c, "student profile", err)
			return
		}
		common.OK(c, "student profile retrieved", true, p)
		return
	}

	if req.Count < 0 {
		h.fail(c, "student profiles", chat.ErrInvalidInput)
		return
	}
	count := req.Count
	if count == 0 {
		count = h.ProfileCount
	}
	profiles, err := h.Students.Random(ctx, count)
	if err != nil {
		h.fail(c, "student profiles", err)
		return
	}
	common.OK(c, "student profiles retrieved", len(profiles) > 0, profiles)
}

type refreshGroundingReq struct {
	StudentName string `json:"student_name"`
}

// RefreshGrounding drops the cached corpus of a student and loads it again.
func (h *Handler) RefreshGrounding(c *gin.Context) {
	var req refreshGroundingReq
	if !h.bind(c, &req) {
		return
	}
	name := strings.TrimSpace(req.StudentName)
	if name == "" {
		h.fail(c, "refresh grounding", chat.ErrInvalidInput)
		return
	}
	if err := h.Grounding.Evict(name); err != nil {
		h.fail(c, "refresh grounding", err)
		return
	}
	idx, err := h.Grounding.Load(c.Request.Context(), name)
	if err != nil {
		h.fail(c, "refresh grounding", err)
		return
	}
	common.OK(c, "grounding refreshed", idx.Len() > 0, gin.H{"student_name": name, "chunks": idx.Len()})
}

type translateReq struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

func (h *Handler) Translate(c *gin.Context) {
	var req translateReq
	if !h.bind(c, &req) {
		return
	}
	if h.Translator == nil || strings.TrimSpace(req.TargetLanguage) == "" {
		h.fail(c, "translate", chat.ErrInvalidInput)
		return
	}
	out, err := h.Translator.Translate(c.Request.Context(), req.Text, req.SourceLanguage, req.TargetLanguage)
	if err != nil {
		h.fail(c, "translate", err)
		return
	}
	common.OK(c, "translated to "+persona.LanguageName(req.TargetLanguage), out != "", out)
}
