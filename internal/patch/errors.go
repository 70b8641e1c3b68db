package patch

import "errors"

// ErrSectionNotFound indicates the ini file lacks the section to edit.
var ErrSectionNotFound = errors.New("ini section not found")

// ErrAnchorNotFound indicates env.py contains neither the placeholder nor the wired form.
var ErrAnchorNotFound = errors.New("env.py placeholder not found")

// ErrVerifyFailed indicates a written value could not be read back.
var ErrVerifyFailed = errors.New("patched value did not round-trip")
