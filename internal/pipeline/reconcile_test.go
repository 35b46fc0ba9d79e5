package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/raine/photo-lister/internal/analysis"
	"github.com/raine/photo-lister/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile(t *testing.T) {
	fields := analysis.Fields{
		Title:          "Vintage Lamp",
		Description:    "Brass desk lamp",
		Category:       "Home",
		EstimatedPrice: 12,
	}

	tests := []struct {
		name    string
		listing storage.Listing
		fields  analysis.Fields
		want    []string
	}{
		{
			name:    "all placeholders",
			listing: storage.Listing{Title: storage.DefaultTitle, Category: storage.DefaultCategory},
			fields:  fields,
			want:    []string{"title", "description", "category", "price"},
		},
		{
			name:    "user title kept",
			listing: storage.Listing{Title: "My Lamp", Category: storage.DefaultCategory},
			fields:  fields,
			want:    []string{"description", "category", "price"},
		},
		{
			name:    "nothing unset",
			listing: storage.Listing{Title: "A", Description: "B", Category: "C", Price: 1},
			fields:  fields,
			want:    nil,
		},
		{
			name:    "empty suggestions ignored",
			listing: storage.Listing{Title: "", Category: ""},
			fields:  analysis.Fields{Title: "   ", Category: storage.DefaultCategory},
			want:    nil,
		},
		{
			name:    "placeholder suggestion not written",
			listing: storage.Listing{Title: storage.DefaultTitle},
			fields:  analysis.Fields{Title: storage.DefaultTitle, EstimatedPrice: 0},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := Reconcile(tt.listing, tt.fields)
			var got []string
			if u.Title != nil {
				got = append(got, "title")
			}
			if u.Description != nil {
				got = append(got, "description")
			}
			if u.Category != nil {
				got = append(got, "category")
			}
			if u.Price != nil {
				got = append(got, "price")
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReconcile_TrimsSuggestions(t *testing.T) {
	u := Reconcile(storage.Listing{}, analysis.Fields{Title: "  Lamp \n"})
	require.NotNil(t, u.Title)
	assert.Equal(t, "Lamp", *u.Title)
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	unlock := k.Lock(1)
	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		k.Lock(1)()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}

	// Other keys are independent.
	k.Lock(2)()

	unlock()
	<-acquired
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutex_Serializes(t *testing.T) {
	k := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		active  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(7)
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, k.size())
}
