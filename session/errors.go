package session

import (
	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeTabNotFound    = "SESSION_TAB_NOT_FOUND"
	ErrCodeTabDirty       = "SESSION_TAB_DIRTY"
	ErrCodeSaveInFlight   = "SESSION_SAVE_IN_FLIGHT"
	ErrCodeDeployInFlight = "SESSION_DEPLOY_IN_FLIGHT"
	ErrCodeReadonlyNode   = "SESSION_READONLY_NODE"
)

var (
	// ErrTabNotFound reports an operation against an unopened tab.
	ErrTabNotFound = apperrors.New("tab not open", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeTabNotFound)

	// ErrTabDirty rejects a non-forced close of a tab with unsaved
	// changes so the caller can prompt for confirmation.
	ErrTabDirty = apperrors.New("tab has unsaved changes, not closed", apperrors.CategoryConflict).
			WithTextCode(ErrCodeTabDirty)

	// ErrSaveInFlight rejects a second save while one is pending; queuing
	// silently would race two version bumps against the same canonical id.
	ErrSaveInFlight = apperrors.New("a save is already in flight for this tab", apperrors.CategoryConflict).
			WithTextCode(ErrCodeSaveInFlight)

	// ErrDeployInFlight rejects overlapping deploys for one tab.
	ErrDeployInFlight = apperrors.New("a deploy is already in flight for this tab", apperrors.CategoryConflict).
				WithTextCode(ErrCodeDeployInFlight)

	// ErrReadonlyNode rejects structural edits to runtime-authored nodes;
	// only their configuration may change.
	ErrReadonlyNode = apperrors.New("readonly node cannot be structurally edited", apperrors.CategoryConflict).
			WithTextCode(ErrCodeReadonlyNode)
)
