// Package mocks provides mock implementations for testing the console's access-control core.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	authz := mocks.NewMockAuthorizer(ctrl)
//	authz.EXPECT().HasRole(gomock.Any(), domainauth.RoleAdmin, "u1").Return(true, nil)
package mocks

// Generate mock for Authorizer interface from internal/ports package.
// This creates MockAuthorizer with methods for all Authorizer interface methods:
// HasRole
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=authorizer_mock.go github.com/target/cse-console/internal/ports Authorizer

// Generate mock for AccessStore interface from internal/ports package.
// This creates MockAccessStore with methods for all AccessStore interface methods:
// ListProfiles, ListAccessLevels, UpsertAccessLevel, Ping
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=access_store_mock.go github.com/target/cse-console/internal/ports AccessStore
