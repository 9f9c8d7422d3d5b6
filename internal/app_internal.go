package internal

import (
	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/infrastructure/controllers"
)

// AppInternal holds every controller the CLI exposes.
type AppInternal struct {
	controllers []entities.Controller
	update      *controllers.UpdateController
}

// NewAppInternal creates the application root from the registered controllers.
func NewAppInternal(
	registered *[]entities.Controller,
	update *controllers.UpdateController,
) *AppInternal {
	return &AppInternal{controllers: *registered, update: update}
}

// GetControllers returns the controllers bound to subcommands.
func (it *AppInternal) GetControllers() []entities.Controller {
	return it.controllers
}

// GetUpdateController returns the controller the root command delegates to.
func (it *AppInternal) GetUpdateController() *controllers.UpdateController {
	return it.update
}
