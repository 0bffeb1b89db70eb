package transcript

import (
	"fmt"

	"github.com/agentdeck/agentdeck/internal/domain"
)

// Progress reduces a task list to a "<done>/<total> tasks completed"
// summary. Empty input yields "0/0 tasks completed".
func Progress(todos []domain.Todo) string {
	completed := 0
	for _, todo := range todos {
		if todo.Status == domain.TodoCompleted {
			completed++
		}
	}
	return fmt.Sprintf("%d/%d tasks completed", completed, len(todos))
}
