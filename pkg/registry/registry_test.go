package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/knocktoolkit/pkg/knock"
	"github.com/harun/knocktoolkit/pkg/tool"
)

func descriptor(method string) tool.Descriptor {
	return tool.Descriptor{
		Method:      method,
		Description: "Test tool " + method,
		Execute: func(c *knock.Client, cfg tool.Config) tool.Handler {
			return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
				return method, nil
			}
		},
	}
}

func testCategories() []Category {
	return []Category{
		{
			Name:        "users",
			Descriptors: []tool.Descriptor{descriptor("getUser"), descriptor("createOrUpdateUser")},
			Buckets: map[string][]string{
				"read":   {"getUser"},
				"manage": {"createOrUpdateUser"},
			},
		},
		{
			Name:        "workflows",
			Descriptors: []tool.Descriptor{descriptor("listWorkflows"), descriptor("triggerWorkflow")},
			Buckets: map[string][]string{
				"read":    {"listWorkflows"},
				"trigger": {"triggerWorkflow"},
			},
			Dynamic: map[string]DynamicBucket{
				"trigger": {Kind: "workflows", Build: func(r Resource) tool.Descriptor { return descriptor("trigger_" + r.Key) }},
			},
		},
	}
}

func TestNew(t *testing.T) {
	t.Run("valid registry", func(t *testing.T) {
		r, err := New(testCategories()...)
		require.NoError(t, err)
		assert.Equal(t, []string{"users", "workflows"}, r.Categories())
		assert.Equal(t, 4, r.Len())
	})

	t.Run("duplicate method across categories", func(t *testing.T) {
		cats := testCategories()
		cats[1].Descriptors = append(cats[1].Descriptors, descriptor("getUser"))

		_, err := New(cats...)
		assert.ErrorIs(t, err, ErrDuplicateMethod)
	})

	t.Run("duplicate category", func(t *testing.T) {
		cats := testCategories()
		_, err := New(cats[0], cats[0])
		assert.ErrorIs(t, err, ErrDuplicateCategory)
	})

	t.Run("bucket with unknown method", func(t *testing.T) {
		cats := testCategories()
		cats[0].Buckets["read"] = []string{"getUser", "listWorkflows"}

		_, err := New(cats...)
		assert.ErrorIs(t, err, ErrUnknownBucketMethod)
	})

	t.Run("invalid descriptor", func(t *testing.T) {
		_, err := New(Category{Name: "broken", Descriptors: []tool.Descriptor{{Method: "x"}}})
		assert.ErrorIs(t, err, tool.ErrInvalidDescriptor)
	})
}

func TestRegistry_Queries(t *testing.T) {
	r, err := New(testCategories()...)
	require.NoError(t, err)

	t.Run("AllDescriptors keeps declaration order", func(t *testing.T) {
		methods := []string{}
		for _, d := range r.AllDescriptors() {
			methods = append(methods, d.Method)
		}
		assert.Equal(t, []string{"getUser", "createOrUpdateUser", "listWorkflows", "triggerWorkflow"}, methods)
	})

	t.Run("DescriptorsFor unknown category", func(t *testing.T) {
		_, err := r.DescriptorsFor("nope")
		assert.ErrorIs(t, err, ErrCategoryNotFound)
	})

	t.Run("BucketsFor returns a copy", func(t *testing.T) {
		buckets, err := r.BucketsFor("users")
		require.NoError(t, err)
		buckets["read"][0] = "mutated"

		again, err := r.BucketsFor("users")
		require.NoError(t, err)
		assert.Equal(t, []string{"getUser"}, again["read"])
	})

	t.Run("Lookup", func(t *testing.T) {
		d, category, err := r.Lookup("triggerWorkflow")
		require.NoError(t, err)
		assert.Equal(t, "triggerWorkflow", d.Method)
		assert.Equal(t, "workflows", category)

		_, _, err = r.Lookup("deleteEverything")
		assert.ErrorIs(t, err, ErrToolNotFound)
	})

	t.Run("Dynamic and Bucket", func(t *testing.T) {
		dyn, ok := r.Dynamic("workflows", "trigger")
		require.True(t, ok)
		assert.Equal(t, "workflows", dyn.Kind)
		assert.Equal(t, "trigger_a", dyn.Build(Resource{Key: "a"}).Method)

		_, ok = r.Dynamic("users", "read")
		assert.False(t, ok)

		methods, ok := r.Bucket("users", "manage")
		require.True(t, ok)
		assert.Equal(t, []string{"createOrUpdateUser"}, methods)
	})

	t.Run("All is keyed by method", func(t *testing.T) {
		all := r.All()
		assert.Len(t, all, 4)
		assert.Contains(t, all, "listWorkflows")
	})
}
