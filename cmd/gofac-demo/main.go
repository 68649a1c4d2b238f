// Command gofac-demo walks through every lifetime policy of the container.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ngone6325/gofac/v2"
	"github.com/Ngone6325/gofac/v2/internal/config"
	"github.com/Ngone6325/gofac/v2/internal/logging"
	"github.com/Ngone6325/gofac/v2/internal/metrics"
	"github.com/Ngone6325/gofac/v2/model"
	"github.com/Ngone6325/gofac/v2/registration"
)

var (
	title = color.New(color.FgCyan, color.Bold).SprintFunc()
	ok    = color.New(color.FgGreen).SprintFunc()
	warn  = color.New(color.FgYellow).SprintFunc()
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	envFile := flag.String("env", ".env", "path to a .env file")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("gofac-demo: %v", err))
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts := []gofac.Option{
		gofac.WithLogger(logger),
		gofac.WithDefaults(cfg.RegistrationOptions()...),
	}
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		collector, err := metrics.NewCollector(cfg.Metrics.Namespace, registry)
		if err != nil {
			return err
		}
		opts = append(opts, gofac.WithObserver(collector))
	}

	c := gofac.NewContainer(opts...)
	defer func() {
		if err := c.Dispose(); err != nil {
			logger.Warn("dispose container", zap.Error(err))
		}
	}()

	if err := register(c); err != nil {
		return err
	}

	ctx := context.Background()
	steps := []struct {
		name string
		fn   func(context.Context, *gofac.Container) error
	}{
		{"Singleton and Transient", demoSingletonTransient},
		{"PerThread", demoPerThread},
		{"Scopes", demoScopes},
		{"Constructor selection", demoConstructorSelection},
		{"Idle expiry", demoExpiry},
		{"Sticky failure", demoStickyFailure},
	}
	for _, step := range steps {
		fmt.Println(title("==== " + step.name + " ===="))
		if err := step.fn(ctx, c); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		fmt.Println()
	}

	if cfg.Metrics.Enabled {
		return printMetrics(registry)
	}
	return nil
}

func register(c *gofac.Container) error {
	if err := c.RegisterAs(model.NewUserRepo, (*model.IUserRepo)(nil), gofac.Singleton,
		registration.WithDisposeOnInvalidate(true)); err != nil {
		return err
	}
	if err := c.RegisterAs(model.NewUserService, (*model.IUserService)(nil), gofac.Transient); err != nil {
		return err
	}
	if err := c.RegisterAs(model.NewUserLog, (*model.IUserLog)(nil), gofac.PerThread); err != nil {
		return err
	}
	return c.RegisterConstructors(nil, gofac.Transient, []any{model.NewMailer, model.NewMailerWithTemplates})
}

func demoSingletonTransient(ctx context.Context, c *gofac.Container) error {
	repo1, err := gofac.Get[model.IUserRepo](ctx, c)
	if err != nil {
		return err
	}
	repo2 := gofac.MustGet[model.IUserRepo](ctx, c)
	fmt.Printf("repo: %s / %s shared=%s\n", repo1.GetRepoID(), repo2.GetRepoID(), yesNo(repo1 == repo2))

	svc1 := gofac.MustGet[model.IUserService](ctx, c)
	svc2 := gofac.MustGet[model.IUserService](ctx, c)
	fmt.Printf("service: %s, distinct=%s, repo=%s\n", svc1.GetUserName(), yesNo(svc1 != svc2), svc1.GetRepoID())
	return nil
}

func demoPerThread(ctx context.Context, c *gofac.Container) error {
	var g errgroup.Group
	ids := make([]string, 3)
	for i := range ids {
		g.Go(func() error {
			worker := gofac.WithThreadID(ctx, gofac.ThreadID(fmt.Sprintf("worker-%d", i)))
			first, err := gofac.Get[model.IUserLog](worker, c)
			if err != nil {
				return err
			}
			second, err := gofac.Get[model.IUserLog](worker, c)
			if err != nil {
				return err
			}
			if first != second {
				return fmt.Errorf("worker-%d saw two instances", i)
			}
			ids[i] = first.GetLogID()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, id := range ids {
		fmt.Printf("worker-%d -> %s\n", i, id)
	}
	return nil
}

func demoScopes(ctx context.Context, c *gofac.Container) error {
	root := gofac.MustGet[model.IUserRepo](ctx, c)
	scope := c.NewScope()
	defer func() { _ = scope.Dispose() }()

	scoped := gofac.MustGet[model.IUserRepo](ctx, scope)
	fmt.Printf("root repo %s, scope repo %s, isolated=%s\n", root.GetRepoID(), scoped.GetRepoID(), yesNo(root != scoped))
	return nil
}

func demoConstructorSelection(ctx context.Context, c *gofac.Container) error {
	bare := gofac.MustGet[*model.Mailer](ctx, c)
	fmt.Printf("without templates: templates=%v\n", bare.Templates)

	scope := c.NewScope()
	defer func() { _ = scope.Dispose() }()
	if err := scope.RegisterInstance(&model.TemplateStore{Names: []string{"welcome", "reset"}}); err != nil {
		return err
	}
	rich := gofac.MustGet[*model.Mailer](ctx, scope)
	fmt.Printf("with templates: %v\n", rich.Templates.Names)
	return nil
}

func demoExpiry(ctx context.Context, c *gofac.Container) error {
	scope := c.NewScope()
	defer func() { _ = scope.Dispose() }()
	if err := scope.Register(model.NewSession, gofac.Singleton,
		registration.WithTimeToLive(50*time.Millisecond),
		registration.WithDisposeOnInvalidate(true)); err != nil {
		return err
	}

	first := gofac.MustGet[*model.Session](ctx, scope)
	time.Sleep(150 * time.Millisecond)
	second := gofac.MustGet[*model.Session](ctx, scope)
	fmt.Printf("session %s expired=%s, replaced by %s\n", first.Token, yesNo(first.Disposed.Load()), second.Token)
	return nil
}

func demoStickyFailure(ctx context.Context, c *gofac.Container) error {
	scope := c.NewScope()
	defer func() { _ = scope.Dispose() }()

	attempts := 0
	err := gofac.RegisterFactory(scope, func() (*model.TemplateStore, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("template directory unavailable")
		}
		return &model.TemplateStore{Names: []string{"welcome"}}, nil
	}, gofac.Singleton)
	if err != nil {
		return err
	}

	for i := 0; i < 2; i++ {
		_, err := gofac.Get[*model.TemplateStore](ctx, scope)
		fmt.Printf("attempt %d: %s\n", i+1, warn(err))
	}
	if err := scope.Reset(ctx, reflect.TypeFor[*model.TemplateStore]()); err != nil {
		return err
	}
	store := gofac.MustGet[*model.TemplateStore](ctx, scope)
	fmt.Printf("after reset: %v (factory calls: %d)\n", store.Names, attempts)
	return nil
}

func printMetrics(registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	fmt.Println(title("==== Metrics ===="))
	for _, f := range families {
		fmt.Printf("%s: %d series\n", f.GetName(), len(f.GetMetric()))
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return ok("yes")
	}
	return warn("no")
}
