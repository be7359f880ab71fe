package runtime

import (
	"context"
	"strings"

	"github.com/dbrain-dev/dbrain/internal/capability"
	"github.com/dbrain-dev/dbrain/internal/todoist"
)

func (l *Local) todoistUserInfo(ctx context.Context) (map[string]any, error) {
	user, err := l.todoist.UserInfo(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"userId": user.UserID,
		"email":  user.Email,
		"name":   user.Name,
	}, nil
}

func (l *Local) todoistAddTasks(ctx context.Context, payload map[string]any) (map[string]any, error) {
	rawTasks, ok := payload["tasks"].([]any)
	if !ok || len(rawTasks) == 0 {
		return nil, capability.Errorf(capability.CodeInvalidInput, "todoist.add_tasks requires non-empty tasks list", false)
	}

	tasks := make([]todoist.Task, 0, len(rawTasks))
	for _, raw := range rawTasks {
		item, ok := raw.(map[string]any)
		if !ok {
			return nil, capability.Errorf(capability.CodeInvalidInput, "task item must be object", false)
		}
		content := strings.TrimSpace(stringField(item, "content", ""))
		if content == "" {
			return nil, capability.Errorf(capability.CodeInvalidInput, "task content is required", false)
		}
		tasks = append(tasks, todoist.Task{
			Content:     content,
			Description: stringField(item, "description", ""),
			Priority:    intField(item, "priority", 0),
			ProjectID:   stringField(item, "projectId", ""),
			DueString:   stringField(item, "dueString", ""),
		})
	}

	created := make([]any, 0, len(tasks))
	for _, task := range tasks {
		res, err := l.todoist.AddTask(ctx, task)
		if err != nil {
			return nil, err
		}
		created = append(created, map[string]any{"id": res.ID, "content": res.Content})
	}
	return map[string]any{"created": created}, nil
}

func (l *Local) todoistFindCompletedTasks(ctx context.Context, payload map[string]any) (map[string]any, error) {
	query := todoist.CompletedQuery{
		Since: stringField(payload, "since", ""),
		Until: stringField(payload, "until", ""),
		Limit: intField(payload, "limit", 0),
	}

	found, err := l.todoist.CompletedTasks(ctx, query)
	if err != nil {
		return nil, err
	}

	tasks := make([]any, 0, len(found))
	for _, item := range found {
		tasks = append(tasks, map[string]any{
			"id":          item.ID,
			"content":     item.Content,
			"completedAt": item.CompletedAt,
		})
	}
	return map[string]any{"tasks": tasks}, nil
}
