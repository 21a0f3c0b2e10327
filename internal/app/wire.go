//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"github.com/deckardhq/deckard/internal/infrastructure/config"
	"github.com/deckardhq/deckard/internal/infrastructure/database"
	"github.com/deckardhq/deckard/internal/infrastructure/server"
)

var configSet = wire.NewSet(
	config.Load,
)

var databaseSet = wire.NewSet(
	database.NewConnection,
)

var serverSet = wire.NewSet(
	server.NewLogger,
	server.NewServer,
)

// Initialize builds the application container using Wire.
func Initialize() (*Container, func(), error) {
	wire.Build(
		configSet,
		databaseSet,
		serverSet,
		wire.Struct(new(Container), "Logger", "Server"),
	)
	return nil, nil, nil
}
