package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/zipcounty/internal/zipcode"
)

// --- Primary Mock ---

type mockPrimary struct {
	mock.Mock
}

func (m *mockPrimary) URL() string {
	return m.Called().String(0)
}

func (m *mockPrimary) Fetch(ctx context.Context) (zipcode.Mapping, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(zipcode.Mapping), args.Error(1)
}

// --- Secondary Mock ---

type mockSecondary struct {
	mock.Mock
}

func (m *mockSecondary) Name() string {
	return "mock"
}

func (m *mockSecondary) Available() bool {
	return m.Called().Bool(0)
}

func (m *mockSecondary) Resolve(ctx context.Context, zips []string) (zipcode.Mapping, error) {
	args := m.Called(ctx, zips)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(zipcode.Mapping), args.Error(1)
}
