package mocks

import "errors"

// MockPasswordVerifier implements auth.PasswordVerifier for testing. It
// records every Compare call so tests can assert on the arguments and the
// call count.
type MockPasswordVerifier struct {
	// ShouldSucceed controls the default Compare result
	ShouldSucceed bool

	// CompareFn overrides the default behavior when set
	CompareFn func(hashedPassword, password string) error

	CompareCalledWith struct {
		HashedPassword string
		Password       string
	}
	CompareCallCount int
}

// Compare implements the auth.PasswordVerifier interface
func (m *MockPasswordVerifier) Compare(hashedPassword, password string) error {
	m.CompareCalledWith.HashedPassword = hashedPassword
	m.CompareCalledWith.Password = password
	m.CompareCallCount++

	if m.CompareFn != nil {
		return m.CompareFn(hashedPassword, password)
	}
	if m.ShouldSucceed {
		return nil
	}
	return errors.New("password mismatch")
}
