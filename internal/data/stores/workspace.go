package stores

import (
	"context"
	"fmt"

	"github.com/colonyops/resumepilot/internal/core/kv"
)

// WorkspaceStore remembers the user's current task and résumés so commands
// can omit ids.
type WorkspaceStore struct {
	ids       *kv.TypedKV[string]
	optimized *kv.TypedKV[int64]
}

// NewWorkspaceStore creates a workspace store on top of store.
func NewWorkspaceStore(store kv.KV) *WorkspaceStore {
	return &WorkspaceStore{
		ids:       kv.Scoped[string](store, "current"),
		optimized: kv.Scoped[int64](store, "current"),
	}
}

// CurrentTask returns the last submitted task id.
func (w *WorkspaceStore) CurrentTask(ctx context.Context) (string, bool, error) {
	return w.ids.Lookup(ctx, "task")
}

// SetCurrentTask records the last submitted task id.
func (w *WorkspaceStore) SetCurrentTask(ctx context.Context, taskID string) error {
	if err := w.ids.Set(ctx, "task", taskID); err != nil {
		return fmt.Errorf("remember task: %w", err)
	}
	return nil
}

// CurrentResume returns the id of the last analysed résumé.
func (w *WorkspaceStore) CurrentResume(ctx context.Context) (string, bool, error) {
	return w.ids.Lookup(ctx, "resume")
}

// SetCurrentResume records the id of the last analysed résumé.
func (w *WorkspaceStore) SetCurrentResume(ctx context.Context, resumeID string) error {
	if err := w.ids.Set(ctx, "resume", resumeID); err != nil {
		return fmt.Errorf("remember resume: %w", err)
	}
	return nil
}

// CurrentOptimized returns the id of the last optimized résumé.
func (w *WorkspaceStore) CurrentOptimized(ctx context.Context) (int64, bool, error) {
	return w.optimized.Lookup(ctx, "optimized")
}

// SetCurrentOptimized records the id of the last optimized résumé.
func (w *WorkspaceStore) SetCurrentOptimized(ctx context.Context, id int64) error {
	if err := w.optimized.Set(ctx, "optimized", id); err != nil {
		return fmt.Errorf("remember optimized resume: %w", err)
	}
	return nil
}

// Clear forgets every remembered id.
func (w *WorkspaceStore) Clear(ctx context.Context) error {
	for _, key := range []string{"task", "resume", "optimized"} {
		if err := w.ids.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear workspace: %w", err)
		}
	}
	return nil
}
