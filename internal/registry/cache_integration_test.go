//go:build integration

package registry_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"compliance/internal/registry"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/testutil/containers"
)

type countingRegistry struct {
	*registry.Static
	projectCalls atomic.Int32
	listCalls    atomic.Int32
}

func (c *countingRegistry) ListProjects(ctx context.Context) ([]registry.Project, error) {
	c.listCalls.Add(1)
	return c.Static.ListProjects(ctx)
}

func (c *countingRegistry) GetProject(ctx context.Context, id int64) (*registry.Project, error) {
	c.projectCalls.Add(1)
	time.Sleep(20 * time.Millisecond)
	return c.Static.GetProject(ctx, id)
}

type CacheSuite struct {
	suite.Suite
	redis    *containers.RedisContainer
	upstream *countingRegistry
	cache    *registry.Cached
}

func TestCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *CacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	static := registry.NewStatic()
	static.AddProject(registry.Project{ID: 7, Name: "Coastal Pipeline", Abbreviation: "CGL"})
	s.upstream = &countingRegistry{Static: static}
	s.cache = registry.NewCached(s.upstream, s.redis.Client, time.Minute,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *CacheSuite) TestConcurrentMissesShareOneCall() {
	ctx := context.Background()
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := s.cache.GetProject(ctx, 7)
			if s.NoError(err) {
				s.Equal("CGL", p.Abbreviation)
			}
		}()
	}
	wg.Wait()
	s.LessOrEqual(s.upstream.projectCalls.Load(), int32(2))

	before := s.upstream.projectCalls.Load()
	_, err := s.cache.GetProject(ctx, 7)
	s.Require().NoError(err)
	s.Equal(before, s.upstream.projectCalls.Load())
}

func (s *CacheSuite) TestErrorsAreNotCached() {
	ctx := context.Background()
	_, err := s.cache.GetProject(ctx, 8)
	s.True(dErrors.HasCode(err, dErrors.CodeUpstream))

	s.upstream.AddProject(registry.Project{ID: 8, Abbreviation: "NEW"})
	p, err := s.cache.GetProject(ctx, 8)
	s.Require().NoError(err)
	s.Equal("NEW", p.Abbreviation)
}

func (s *CacheSuite) TestProjectListIsCached() {
	ctx := context.Background()
	first, err := s.cache.ListProjects(ctx)
	s.Require().NoError(err)
	s.Require().Len(first, 1)

	s.upstream.AddProject(registry.Project{ID: 9, Abbreviation: "SITEC"})
	again, err := s.cache.ListProjects(ctx)
	s.Require().NoError(err)
	s.Equal(first, again)
	s.Equal(int32(1), s.upstream.listCalls.Load())
}
