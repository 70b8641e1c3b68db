package workspace

import "errors"

// ErrWorkspaceExists indicates migration-tool artifacts are already present.
// The procedure never merges into or overwrites an existing workspace.
var ErrWorkspaceExists = errors.New("migration workspace already exists")

// ErrAlreadyCommitted indicates a staging area was used after Commit.
var ErrAlreadyCommitted = errors.New("staging area already committed")
