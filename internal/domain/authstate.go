package domain

// AuthState is the authorization state of a connection.
type AuthState string

const (
	AuthError       AuthState = "error"
	AuthLoading     AuthState = "loading"
	AuthInitialized AuthState = "initialized"
	AuthAuthorized  AuthState = "authorized"
	AuthLogout      AuthState = "logout"
)

// String returns the wire name of the state.
func (s AuthState) String() string {
	return string(s)
}

// Valid reports whether s is one of the known states.
func (s AuthState) Valid() bool {
	switch s {
	case AuthError, AuthLoading, AuthInitialized, AuthAuthorized, AuthLogout:
		return true
	}
	return false
}
