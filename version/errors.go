package version

import (
	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeDeployDirty      = "VERSION_DEPLOY_DIRTY"
	ErrCodeDeployDraft      = "VERSION_DEPLOY_DRAFT"
	ErrCodeCanonicalChanged = "VERSION_CANONICAL_CHANGED"
	ErrCodeInvalidVersion   = "VERSION_INVALID_SEMVER"
	ErrCodeInvalidGraph     = "VERSION_GRAPH_INVALID"
)

var (
	// ErrDeployDirty rejects deploying while the editing session holds
	// unsaved changes. Callers must save first.
	ErrDeployDirty = apperrors.New("graph has unsaved changes, save before deploying", apperrors.CategoryConflict).
			WithTextCode(ErrCodeDeployDirty)

	// ErrDeployDraft rejects deploying a record that was never saved.
	ErrDeployDraft = apperrors.New("draft graphs cannot be deployed", apperrors.CategoryConflict).
			WithTextCode(ErrCodeDeployDraft)

	// ErrCanonicalChanged guards the one-way identity promotion: once a
	// canonical id is adopted it never changes.
	ErrCanonicalChanged = apperrors.New("store returned a different canonical id", apperrors.CategoryConflict).
				WithTextCode(ErrCodeCanonicalChanged)

	// ErrInvalidVersion reports an unparseable semver string.
	ErrInvalidVersion = apperrors.New("invalid semver version", apperrors.CategoryValidation).
				WithTextCode(ErrCodeInvalidVersion)

	// ErrInvalidGraph rejects saving a structurally invalid graph; the
	// validator's diagnostics ride along as metadata.
	ErrInvalidGraph = apperrors.New("graph failed structural validation", apperrors.CategoryValidation).
			WithTextCode(ErrCodeInvalidGraph)
)
