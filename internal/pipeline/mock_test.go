package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cinedata/filmset-cli/internal/model"
	"github.com/cinedata/filmset-cli/pkg/mediawiki"
)

// --- MediaWiki Mock ---

type mockMediaWikiClient struct {
	mock.Mock
}

func (m *mockMediaWikiClient) CategoryMembers(ctx context.Context, category string, mt mediawiki.MemberType) ([]string, error) {
	args := m.Called(ctx, category, mt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockMediaWikiClient) ResolveQIDs(ctx context.Context, titles []string) (map[string]string, error) {
	args := m.Called(ctx, titles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *mockMediaWikiClient) Summary(ctx context.Context, title string) (string, error) {
	args := m.Called(ctx, title)
	return args.String(0), args.Error(1)
}

// --- Wikidata Mock ---

type mockWikidataClient struct {
	mock.Mock
}

func (m *mockWikidataClient) FilmMetadata(ctx context.Context, qids []string) (map[string]model.FilmMeta, error) {
	args := m.Called(ctx, qids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]model.FilmMeta), args.Error(1)
}
