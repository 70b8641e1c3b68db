package config

import "strings"

// RedactURL replaces the password in a database URL (SQLAlchemy or libpq style) with "***".
// Userinfo is split the way SQLAlchemy splits it: the username ends at the first ":"
// and the password at the first "@", so unencoded characters such as "#" still
// count as part of the password. A URL without a password is returned unchanged.
func RedactURL(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || scheme == "" {
		return raw
	}

	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return raw
	}

	user, _, hasPassword := strings.Cut(userinfo, ":")
	if !hasPassword || strings.Contains(user, "/") {
		return raw
	}

	return scheme + "://" + user + ":***@" + host
}
