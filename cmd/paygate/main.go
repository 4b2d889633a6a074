package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/mdouchement/paygate/internal/access"
	"github.com/mdouchement/paygate/internal/authorization"
	"github.com/mdouchement/paygate/internal/database"
	"github.com/mdouchement/paygate/internal/ledger"
	"github.com/mdouchement/paygate/internal/logger"
	"github.com/mdouchement/paygate/internal/server"
	"github.com/mdouchement/paygate/internal/txbuilder"
	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const dbname = "paygate.db"

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg string
)

func main() {
	c := &coral.Command{
		Use:     "paygate",
		Short:   "Payment-gated content access server",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    coral.ExactArgs(0),
	}
	for _, cmd := range []*coral.Command{initCmd, reindexCmd, serverCmd, fundCmd, balanceCmd, publishCmd, inspectCmd} {
		cmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
		c.AddCommand(cmd)
	}

	publishCmd.Flags().StringVar(&publication.key, "key", "", "Exported keypair of the creator")
	publishCmd.Flags().StringVar(&publication.title, "title", "", "Title of the content")
	publishCmd.Flags().StringVar(&publication.description, "description", "", "Description of the content")
	publishCmd.Flags().StringVar(&publication.price, "price", "", "Price of the content")
	publishCmd.Flags().StringVar(&publication.url, "url", "", "Locator revealed to the purchasers")

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func dbnameWithPath(path string) string {
	if len(path) == 0 {
		return dbname
	}
	return filepath.Join(path, dbname)
}

func load() (*koanf.Koanf, error) {
	konf := koanf.New(".")
	if err := konf.Load(file.Provider(cfg), yaml.Parser()); err != nil {
		return nil, errors.Wrap(err, "could not load configuration")
	}

	err := logger.Setup(logger.Config{
		Level:      konf.String("log.level"),
		Filename:   konf.String("log.file"),
		MaxSize:    konf.Int("log.max_size"),
		MaxBackups: konf.Int("log.max_backups"),
		MaxAge:     konf.Int("log.max_age"),
	})
	return konf, err
}

func open(konf *koanf.Koanf) (database.Client, *ledger.Ledger, error) {
	db, err := database.StormOpen(dbnameWithPath(konf.String("database_path")))
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not open database")
	}

	price, err := unsigned(konf, "gas.price", ledger.DefaultGasPrice)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, ledger.New(db, ledger.WithGasPrice(price)), nil
}

func gasBudget(konf *koanf.Koanf) (uint64, error) {
	return unsigned(konf, "gas.budget", ledger.DefaultGasBudget)
}

// unsigned returns the value of key, fallback when unset. Negative values are rejected.
func unsigned(konf *koanf.Koanf, key string, fallback uint64) (uint64, error) {
	if !konf.Exists(key) {
		return fallback, nil
	}

	v := konf.Int64(key)
	if v < 0 {
		return 0, errors.Errorf("%s must not be negative, got %d", key, v)
	}
	return uint64(v), nil
}

var (
	initCmd = &coral.Command{
		Use:   "init",
		Short: "Init the database and the ledger genesis",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			owner := konf.String("registry_owner")
			if !paytx.IsAddress(owner) {
				return errors.New("registry_owner must be an address")
			}

			if err = database.StormInit(dbnameWithPath(konf.String("database_path"))); err != nil {
				return err
			}

			db, l, err := open(konf)
			if err != nil {
				return err
			}
			defer db.Close()

			registry, err := l.Genesis(context.Background(), owner)
			if err != nil {
				return errors.Wrap(err, "could not create genesis")
			}
			logrus.WithField("registry", registry.ID).Info("ledger initialized")

			// Initial allocations, address: value
			for _, address := range konf.MapKeys("allocations") {
				value, err := unsigned(konf, "allocations."+address, 0)
				if err != nil {
					return err
				}

				coin, err := l.Mint(context.Background(), address, value)
				if err != nil {
					return errors.Wrapf(err, "could not allocate %s", address)
				}
				logrus.WithFields(logrus.Fields{"owner": address, "coin": coin.ID}).Info("allocation minted")
			}
			return nil
		},
	}

	//
	reindexCmd = &coral.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			return database.StormReIndex(dbnameWithPath(konf.String("database_path")))
		},
	}

	//
	fundCmd = &coral.Command{
		Use:   "fund ADDRESS VALUE",
		Short: "Mint a coin owned by the given address",
		Args:  coral.ExactArgs(2),
		RunE: func(_ *coral.Command, args []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			var value uint64
			if _, err = fmt.Sscan(args[1], &value); err != nil {
				return errors.Wrap(err, "invalid value")
			}

			db, l, err := open(konf)
			if err != nil {
				return err
			}
			defer db.Close()

			coin, err := l.Mint(context.Background(), args[0], value)
			if err != nil {
				return err
			}
			fmt.Println(coin.ID)
			return nil
		},
	}

	//
	balanceCmd = &coral.Command{
		Use:   "balance ADDRESS",
		Short: "Print the coins owned by the given address",
		Args:  coral.ExactArgs(1),
		RunE: func(_ *coral.Command, args []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			db, l, err := open(konf)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			coins, err := l.Coins(ctx, args[0])
			if err != nil {
				return err
			}
			for _, coin := range coins {
				fmt.Printf("%s %d\n", coin.Ref.ID, coin.Value)
			}

			balance, err := l.Balance(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println("balance:", balance)
			return nil
		},
	}

	//
	publication struct {
		key         string
		title       string
		description string
		price       string
		url         string
	}
	publishCmd = &coral.Command{
		Use:   "publish",
		Short: "Publish a content signed by its creator",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			creator, err := paytx.ParseKeypair(publication.key)
			if err != nil {
				return errors.Wrap(err, "invalid creator key")
			}

			db, l, err := open(konf)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			registry, err := l.Registry(ctx)
			if err != nil {
				return err
			}

			budget, err := gasBudget(konf)
			if err != nil {
				return err
			}

			u, err := txbuilder.New(l, txbuilder.WithGasBudget(budget)).BuildCreateContent(ctx, txbuilder.CreateContentParams{
				Registry:    registry.SharedRef(),
				Creator:     creator.Address(),
				Title:       publication.title,
				Description: publication.description,
				Price:       publication.price,
				ContentURL:  publication.url,
			})
			if err != nil {
				return err
			}

			tx, err := l.Execute(ctx, u.Bytes, []paytx.Signature{creator.Sign(u.Bytes)})
			if err != nil {
				return err
			}
			if !tx.Effects.Succeeded() {
				return errors.Errorf("publication %s failed: %s", tx.Digest, tx.Effects.Error)
			}

			for _, ev := range tx.Events {
				if ev.ContentCreated != nil {
					fmt.Println(ev.ContentCreated.ContentID)
				}
			}
			return nil
		},
	}

	//
	inspectCmd = &coral.Command{
		Use:   "inspect OBJECT_ID|DIGEST",
		Short: "Dump an object or a transaction of the ledger",
		Args:  coral.ExactArgs(1),
		RunE: func(_ *coral.Command, args []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			db, l, err := open(konf)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			if paytx.IsObjectID(args[0]) {
				o, err := l.Object(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Println(logger.Dump(o))
				return nil
			}

			tx, err := l.Transaction(ctx, args[0])
			if err != nil {
				return err
			}
			if e, err := paytx.Decode(tx.Bytes); err == nil {
				fmt.Println(logger.Dump(e))
			}
			fmt.Println(logger.Dump(tx))

			for _, c := range tx.Effects.Created() {
				fmt.Printf("created %s %s (version %d)\n", c.ID, c.Type, c.Version)
			}
			for _, c := range tx.Effects.Mutated() {
				fmt.Printf("mutated %s %s (version %d)\n", c.ID, c.Type, c.Version)
			}
			return nil
		},
	}

	//
	//
	serverCmd = &coral.Command{
		Use:   "server",
		Short: "Start server",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			db, l, err := open(konf)
			if err != nil {
				return err
			}
			defer db.Close()

			//
			// Fees sponsoring
			budget, err := gasBudget(konf)
			if err != nil {
				return err
			}
			bopts := []txbuilder.Option{txbuilder.WithGasBudget(budget)}
			poller := authorization.DefaultPoller()
			if konf.Exists("poller.interval") {
				poller.Interval = konf.Duration("poller.interval")
			}
			if konf.Exists("poller.timeout") {
				poller.Timeout = konf.Duration("poller.timeout")
			}
			popts := []authorization.Option{authorization.WithPoller(poller)}
			if key := konf.String("sponsor.key"); key != "" {
				k, err := paytx.ParseKeypair(key)
				if err != nil {
					return errors.Wrap(err, "invalid sponsor key")
				}

				maxBudget, err := unsigned(konf, "sponsor.max_budget", budget)
				if err != nil {
					return err
				}
				bopts = append(bopts, txbuilder.WithSponsor(k.Address()))
				popts = append(popts, authorization.WithSponsor(authorization.NewKeySponsor(k, maxBudget)))
				logrus.WithField("sponsor", k.Address()).Info("fees sponsoring enabled")
			}

			//
			// Access cache
			var cache access.Cache
			if addr := konf.String("cache.redis.address"); addr != "" {
				cache = access.NewRedisCache(addr, konf.String("cache.redis.password"))
			} else {
				size := konf.Int("cache.size")
				if size == 0 {
					size = access.DefaultCacheSize
				}
				if cache, err = access.NewLRUCache(size); err != nil {
					return err
				}
			}

			engine := server.EchoEngine(server.IOC{
				Version:  version,
				Ledger:   l,
				Builder:  txbuilder.New(l, bopts...),
				Protocol: authorization.New(l, popts...),
				Resolver: access.NewResolver(l, cache),
			})
			server.PrintRoutes(engine)

			address := konf.String("address")
			message := "could not run server"
			logrus.Infof("Server listening on %s", address)
			parts := strings.Split(address, ":")
			if len(parts) == 2 && parts[0] == "unix" {
				socketFile := parts[1]
				if _, err := os.Stat(socketFile); err == nil {
					logrus.Infof("Removing existing %s", socketFile)
					os.Remove(socketFile)
				}
				defer os.Remove(socketFile)
				listener, err := net.Listen(parts[0], socketFile)
				if err != nil {
					return err
				}
				return errors.Wrap(engine.Server.Serve(listener), message)
			}
			return errors.Wrap(engine.Start(address), message)
		},
	}
)
