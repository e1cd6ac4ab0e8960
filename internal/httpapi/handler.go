package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"todozen/internal/model"
	"todozen/internal/service"
)

// TaskResponse is the wire form of a task, shared with the CLI --json output.
type TaskResponse struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	Due        time.Time `json:"due"`
	Created    time.Time `json:"created"`
	Done       bool      `json:"done"`
	Recurrence string    `json:"recurrence"`
	Repeat     string    `json:"repeat"`
	Notified   bool      `json:"notified"`
	XP         int       `json:"xp"`
}

func ToTaskResponse(t model.Task) TaskResponse {
	rec := t.Recurrence
	if rec == "" {
		rec = model.RecurrenceNone
	}
	return TaskResponse{
		ID:         t.ID,
		Owner:      t.Owner,
		Title:      t.Title,
		Category:   t.Category,
		Due:        t.Due,
		Created:    t.Created,
		Done:       t.Done,
		Recurrence: string(rec),
		Repeat:     model.DescribeRecurrence(rec, t.Extra),
		Notified:   t.Notified,
		XP:         t.XP,
	}
}

type ToggleResponse struct {
	Task    TaskResponse     `json:"task"`
	Next    *TaskResponse    `json:"next,omitempty"`
	XP      int              `json:"xp"`
	Profile *ProfileResponse `json:"profile,omitempty"`
}

type ProfileResponse struct {
	Username      string     `json:"username"`
	Coins         int        `json:"coins"`
	Streak        int        `json:"streak"`
	LastCompleted *time.Time `json:"last_completed,omitempty"`
}

func ToProfileResponse(p model.Profile) ProfileResponse {
	return ProfileResponse{Username: p.Username, Coins: p.Coins, Streak: p.Streak, LastCompleted: p.LastCompleted}
}

// TaskHandler serves /api/v1/tasks for one owner.
type TaskHandler struct {
	tasks      *service.TaskService
	completion *service.CompletionService
	profiles   *service.ProfileService
	owner      string
	now        func() time.Time
}

func NewTaskHandler(tasks *service.TaskService, completion *service.CompletionService, profiles *service.ProfileService, owner string) *TaskHandler {
	if owner == "" {
		owner = model.GuestOwner
	}
	return &TaskHandler{tasks: tasks, completion: completion, profiles: profiles, owner: owner, now: time.Now}
}

type createTaskRequest struct {
	Title      string `json:"title"`
	Category   string `json:"category"`
	Due        string `json:"due"`
	Recurrence string `json:"recurrence"`
}

func (h *TaskHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	due, err := service.ParseDue(req.Due, h.now())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	rec, extra, err := service.ParseRecurrence(req.Recurrence)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	task, err := h.tasks.CreateTask(r.Context(), service.TaskInput{
		Owner:      h.owner,
		Title:      req.Title,
		Category:   req.Category,
		Due:        due,
		Recurrence: rec,
		Extra:      extra,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, ToTaskResponse(task))
}

func (h *TaskHandler) handleList(w http.ResponseWriter, r *http.Request) {
	includeDone := r.URL.Query().Get("all") == "true"
	tasks, err := h.tasks.ListTasks(r.Context(), h.owner, includeDone)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, ToTaskResponse(t))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"tasks": out})
}

func (h *TaskHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.GetOwned(r.Context(), h.owner, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ToTaskResponse(task))
}

// ownedID returns the {id} path parameter if it names one of the owner's
// tasks; otherwise it writes the error response.
func (h *TaskHandler) ownedID(w http.ResponseWriter, r *http.Request) (string, bool) {
	task, err := h.tasks.GetOwned(r.Context(), h.owner, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return "", false
	}
	return task.ID, true
}

func (h *TaskHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedID(w, r)
	if !ok {
		return
	}
	if err := h.tasks.DeleteTask(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedID(w, r)
	if !ok {
		return
	}
	res, err := h.completion.Toggle(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	out := ToggleResponse{Task: ToTaskResponse(res.Task), XP: res.XP}
	if res.Next != nil {
		next := ToTaskResponse(*res.Next)
		out.Next = &next
	}
	if res.Profile != nil {
		p := ToProfileResponse(*res.Profile)
		out.Profile = &p
	}
	WriteJSON(w, http.StatusOK, out)
}

type snoozeRequest struct {
	Minutes int `json:"minutes"`
}

func (h *TaskHandler) handleSnooze(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedID(w, r)
	if !ok {
		return
	}
	var req snoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	task, err := h.tasks.Snooze(r.Context(), id, req.Minutes)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ToTaskResponse(task))
}

type dueRequest struct {
	Due string `json:"due"`
}

func (h *TaskHandler) handleEditDue(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedID(w, r)
	if !ok {
		return
	}
	var req dueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	due, err := service.ParseDue(req.Due, h.now())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	task, err := h.tasks.EditDue(r.Context(), id, due)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ToTaskResponse(task))
}

func (h *TaskHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Get(r.Context(), h.owner)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ToProfileResponse(p))
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
