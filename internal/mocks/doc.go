// Package mocks holds shared mock implementations of the store and
// service interfaces so test packages don't each define their own.
//
// Every mock follows the same shape: exported function fields override
// individual methods, and a nil field falls back to a simple in-memory
// default. A typical test configures only the method it cares about:
//
//	jwtService := &mocks.MockJWTService{
//	    GenerateTokenFn: func(ctx context.Context, userID uuid.UUID) (string, error) {
//	        return "mocked-token", nil
//	    },
//	}
//
// New mocks go in a file named after the interface they implement and
// should keep to the function-field pattern.
package mocks
