package httpapi

import (
	"net/http"

	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/httpapi/render"
	"github.com/rpattn/auditdesk/internal/questionnaire"
)

type versionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type sectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type moveRequest struct {
	Direction questionnaire.Direction `json:"direction"`
}

type questionRequest struct {
	Label       string              `json:"label"`
	Description string              `json:"description"`
	Type        domain.QuestionType `json:"question_type"`
	Options     []string            `json:"options"`
	IsRequired  bool                `json:"is_required"`
}

func (q questionRequest) input() questionnaire.QuestionInput {
	return questionnaire.QuestionInput{
		Label:       q.Label,
		Description: q.Description,
		Type:        q.Type,
		Options:     q.Options,
		IsRequired:  q.IsRequired,
	}
}

func (a *api) listVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := a.Questionnaires.ListVersions(r.Context())
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, versions)
}

func (a *api) createVersion(w http.ResponseWriter, r *http.Request) {
	var req versionRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	version, err := a.Questionnaires.CreateVersion(r.Context(), req.Name, req.Description)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, version)
}

func (a *api) publishedTree(w http.ResponseWriter, r *http.Request) {
	tree, err := a.Questionnaires.PublishedTree(r.Context())
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, tree)
}

func (a *api) versionTree(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "questionnaire.tree")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	tree, err := a.Questionnaires.Tree(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, tree)
}

func (a *api) publishVersion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "questionnaire.publish")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	version, err := a.Questionnaires.Publish(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, version)
}

func (a *api) addSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "questionnaire.add_section")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	var req sectionRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	section, err := a.Questionnaires.AddSection(r.Context(), id, req.Name, req.Description)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, section)
}

func (a *api) editSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "questionnaire.edit_section")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	var req sectionRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	section, err := a.Questionnaires.EditSection(r.Context(), id, req.Name, req.Description)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, section)
}

func (a *api) deleteSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "questionnaire.delete_section")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	if err := a.Questionnaires.DeleteSection(r.Context(), id); err != nil {
		render.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) moveSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "questionnaire.move_section")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	var req moveRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	sections, err := a.Questionnaires.MoveSection(r.Context(), id, req.Direction)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, sections)
}

func (a *api) addQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "questionnaire.add_question")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	var req questionRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	question, err := a.Questionnaires.AddQuestion(r.Context(), id, req.input())
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, question)
}

func (a *api) editQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "questionnaire.edit_question")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	var req questionRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	question, err := a.Questionnaires.EditQuestion(r.Context(), id, req.input())
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, question)
}

func (a *api) retireQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "questionnaire.retire_question")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	question, err := a.Questionnaires.RetireQuestion(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, question)
}
