package server

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdouchement/paygate/internal/access"
	"github.com/mdouchement/paygate/internal/authorization"
	ledgerpkg "github.com/mdouchement/paygate/internal/ledger"
	"github.com/mdouchement/paygate/internal/server/middlewares"
	"github.com/mdouchement/paygate/internal/server/service"
	"github.com/mdouchement/paygate/internal/txbuilder"
)

// An IOC is an Iversion Of Control pattern used to init the server package.
type IOC struct {
	Version  string
	Ledger   *ledgerpkg.Ledger
	Builder  *txbuilder.Builder
	Protocol *authorization.Protocol
	Resolver *access.Resolver
}

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl IOC) *echo.Echo {
	engine := echo.New()
	engine.Use(middleware.Recover())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost},
		ExposeHeaders: []string{
			HeaderPaymentRequired,
			HeaderPaymentAmount,
			HeaderPaymentRecipient,
			HeaderPaymentDigest,
		},
	}))
	engine.Use(middleware.Gzip())

	engine.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${status}] ${method} ${uri} (${bytes_in}) ${latency_human}\n",
	}))
	engine.Binder = middlewares.NewBinder()
	// Error handler
	engine.HTTPErrorHandler = middlewares.HTTPErrorHandler

	engine.Pre(middleware.Rewrite(map[string]string{
		"/": "/version",
	}))

	////////////
	// Router //
	////////////

	accessService := service.NewAccess(ctrl.Ledger, ctrl.Builder, ctrl.Protocol, ctrl.Resolver)
	router := engine.Group("")

	// generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})

	//
	// content handlers
	//
	content := &content{
		access: accessService,
	}
	router.GET("/content", content.List)
	router.GET("/content/:id", content.Show)
	router.POST("/content/:id/execute", content.Execute)

	//
	// ledger handlers
	//
	ledger := &ledger{
		access: accessService,
	}
	router.GET("/receipts/:address", ledger.Receipts)
	router.GET("/transactions", ledger.Transactions)
	router.GET("/transactions/:digest", ledger.Transaction)

	return engine
}

// PrintRoutes prints the Echo engin exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}
