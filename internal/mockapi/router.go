package mockapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter assembles a gin engine serving the auth and resource routes.
// Middlewares run before every route, after request id assignment.
func NewRouter(configuration ServerConfig, directory *Directory, catalog *Catalog, refreshTokens RefreshTokenStore, middlewares ...gin.HandlerFunc) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID())
	router.Use(middlewares...)
	if err := MountAuthRoutes(router, configuration, directory, refreshTokens); err != nil {
		return nil, err
	}
	requireBearer, err := NewBearerMiddleware(configuration)
	if err != nil {
		return nil, err
	}
	if err := MountResourceRoutes(router, requireBearer, directory, catalog); err != nil {
		return nil, err
	}
	router.NoRoute(func(contextGin *gin.Context) {
		abortWithMessage(contextGin, http.StatusNotFound, "Cannot "+contextGin.Request.Method+" "+contextGin.Request.URL.Path)
	})
	return router, nil
}
