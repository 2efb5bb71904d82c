// Package migrations contains the schema migrations. Each file registers its
// migrations from init(); importing the package for side effects makes them
// available to the runner.
package migrations
