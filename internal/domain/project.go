package domain

import "github.com/google/uuid"

// Domain object kinds stored in memory metadata under the "type" tag. Typed
// entities are ordinary memories; these views are projected from metadata.
const (
	KindProject    = "project"
	KindTask       = "task"
	KindPerson     = "person"
	KindHousehold  = "household"
	KindAttendance = "attendance"
	KindList       = "list"
)

// Project is a typed view over a work-module memory with type=project.
type Project struct {
	ID          string    `json:"id"`
	MemoryID    uuid.UUID `json:"memory_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// Task is a typed view over a work-module memory with type=task. Subtasks and
// todos live as arrays inside the task's metadata rather than as rows.
type Task struct {
	ID          string    `json:"id"`
	MemoryID    uuid.UUID `json:"memory_id"`
	ProjectID   string    `json:"projectId,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	DueDate     string    `json:"dueDate,omitempty"`
	Subtasks    []Subtask `json:"subtasks,omitempty"`
	Todos       []string  `json:"todos,omitempty"`
}

type Subtask struct {
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

func (p Project) ToMetadata() Metadata {
	md := Metadata{
		"type": KindProject,
		"id":   p.ID,
		"name": p.Name,
	}
	if p.Description != "" {
		md["description"] = p.Description
	}
	if p.Status != "" {
		md["status"] = p.Status
	}
	if len(p.Tags) > 0 {
		md["tags"] = p.Tags
	}
	return md
}

func ProjectFromMemory(m *Memory) Project {
	return Project{
		ID:          m.Metadata.String("id"),
		MemoryID:    m.ID,
		Name:        m.Metadata.String("name"),
		Description: m.Metadata.String("description"),
		Status:      m.Metadata.String("status"),
		Tags:        m.Metadata.StringSlice("tags"),
	}
}

func (t Task) ToMetadata() Metadata {
	md := Metadata{
		"type":  KindTask,
		"id":    t.ID,
		"title": t.Title,
	}
	if t.ProjectID != "" {
		md["projectId"] = t.ProjectID
	}
	if t.Description != "" {
		md["description"] = t.Description
	}
	if t.Status != "" {
		md["status"] = t.Status
	}
	if t.Priority != "" {
		md["priority"] = t.Priority
	}
	if t.DueDate != "" {
		md["dueDate"] = t.DueDate
	}
	if len(t.Subtasks) > 0 {
		subs := make([]any, 0, len(t.Subtasks))
		for _, st := range t.Subtasks {
			subs = append(subs, map[string]any{"title": st.Title, "done": st.Done})
		}
		md["subtasks"] = subs
	}
	if len(t.Todos) > 0 {
		md["todos"] = t.Todos
	}
	return md
}

func TaskFromMemory(m *Memory) Task {
	t := Task{
		ID:          m.Metadata.String("id"),
		MemoryID:    m.ID,
		ProjectID:   m.Metadata.String("projectId"),
		Title:       m.Metadata.String("title"),
		Description: m.Metadata.String("description"),
		Status:      m.Metadata.String("status"),
		Priority:    m.Metadata.String("priority"),
		DueDate:     m.Metadata.String("dueDate"),
		Todos:       m.Metadata.StringSlice("todos"),
	}
	if raw, ok := m.Metadata["subtasks"].([]any); ok {
		for _, e := range raw {
			if sm, ok := e.(map[string]any); ok {
				title, _ := sm["title"].(string)
				done, _ := sm["done"].(bool)
				t.Subtasks = append(t.Subtasks, Subtask{Title: title, Done: done})
			}
		}
	}
	return t
}
