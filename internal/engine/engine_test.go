package engine_test

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/potlucklabs/potluck/internal/engine"
	"github.com/potlucklabs/potluck/internal/peer"
	"github.com/potlucklabs/potluck/internal/recipe"
	"github.com/potlucklabs/potluck/internal/wire"
	"github.com/potlucklabs/potluck/mock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type testNode struct {
	id    peer.ID
	store *recipe.Store
	route *mock.Route
	eng   *engine.Engine
	errC  <-chan error
}

var _ = Describe("Engine", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		net    *mock.Network
	)

	newStore := func(id peer.ID) *recipe.Store {
		s, err := recipe.Open(recipe.Config{Path: "/recipes.json", FS: vfs.NewMem(), Host: id})
		Expect(err).ToNot(HaveOccurred())
		return s
	}

	start := func(id peer.ID, store *recipe.Store) *testNode {
		dir := peer.NewDirectory()
		route := net.Route(id, dir)
		eng, err := engine.New(engine.Config{
			Host:      id,
			Store:     store,
			Channel:   route,
			Directory: dir,
		})
		Expect(err).ToNot(HaveOccurred())
		return &testNode{id: id, store: store, route: route, eng: eng, errC: eng.Flow(ctx)}
	}

	names := func(recipes []recipe.Recipe) []string {
		var out []string
		for _, r := range recipes {
			out = append(out, r.Name)
		}
		return out
	}

	all := func(n *testNode) func() []recipe.Recipe {
		return func() []recipe.Recipe {
			recipes, err := n.eng.ListAll(ctx)
			Expect(err).ToNot(HaveOccurred())
			return recipes
		}
	}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		net = mock.NewNetwork()
	})
	AfterEach(func() { cancel() })

	Describe("Create", func() {
		It("Should report the assigned id", func() {
			a := start("node-a", newStore("node-a"))
			r, err := a.eng.Create(ctx, "Soup", "water", "boil")
			Expect(err).ToNot(HaveOccurred())
			Expect(r.ID).To(Equal(uint64(1)))
			Expect(r.Publisher).To(Equal(peer.ID("node-a")))
		})
		It("Should return validation errors to the caller", func() {
			a := start("node-a", newStore("node-a"))
			_, err := a.eng.Create(ctx, "  ", "", "")
			Expect(errors.Is(err, recipe.ErrValidation)).To(BeTrue())
			Expect(a.eng.State()).To(Equal(engine.StateRunning))
		})
		It("Should keep running degraded when persistence fails", func() {
			fs := &failingFS{FS: vfs.NewMem()}
			store, err := recipe.Open(recipe.Config{Path: "/recipes.json", FS: fs, Host: "node-a"})
			Expect(err).ToNot(HaveOccurred())
			a := start("node-a", store)

			fs.failWrites = true
			_, err = a.eng.Create(ctx, "Soup", "", "")
			Expect(errors.Is(err, recipe.ErrPersistence)).To(BeTrue())
			Expect(a.eng.State()).To(Equal(engine.StateRunning))

			fs.failWrites = false
			r, err := a.eng.Create(ctx, "Bread", "", "")
			Expect(err).ToNot(HaveOccurred())
			Expect(r.ID).To(Equal(uint64(2)))
		})
	})

	Describe("PublishOne", func() {
		It("Should propagate a published recipe to a subscribed peer", func() {
			a := start("node-a", newStore("node-a"))
			b := start("node-b", newStore("node-b"))

			r, err := a.eng.Create(ctx, "Soup", "water", "boil")
			Expect(err).ToNot(HaveOccurred())
			Expect(a.eng.PublishOne(ctx, r.ID)).To(Succeed())

			Eventually(all(b)).Should(HaveLen(1))
			got := all(b)()[0]
			Expect(got.Name).To(Equal("Soup"))
			Expect(got.ID).To(Equal(uint64(1)))
			Expect(got.Publisher).To(Equal(peer.ID("node-a")))
		})
		It("Should fail with ErrNotFound for a received recipe and publish nothing", func() {
			storeA := newStore("node-a")
			_, err := storeA.Merge([]recipe.Recipe{{ID: 9, Name: "Stew", Publisher: "ghost-node", Shared: true}})
			Expect(err).ToNot(HaveOccurred())
			a := start("node-a", storeA)
			b := start("node-b", newStore("node-b"))

			Expect(errors.Is(a.eng.PublishOne(ctx, 9), recipe.ErrNotFound)).To(BeTrue())
			Consistently(all(b), 100*time.Millisecond).Should(BeEmpty())
		})
		It("Should fail with ErrNotFound for an id that does not exist", func() {
			a := start("node-a", newStore("node-a"))
			Expect(errors.Is(a.eng.PublishOne(ctx, 42), recipe.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("Inbound filtering", func() {
		It("Should discard an announce addressed to another peer", func() {
			b := start("node-b", newStore("node-b"))
			outsider := net.Route("outsider", nil)

			msg := wire.NewAnnounce(wire.TargetPeer("node-c"), []recipe.Recipe{
				{ID: 1, Name: "Private", Publisher: "outsider"},
			})
			payload, err := wire.Codec{}.Encode(msg)
			Expect(err).ToNot(HaveOccurred())
			Expect(outsider.Publish(ctx, payload)).To(Succeed())

			Consistently(all(b), 100*time.Millisecond).Should(BeEmpty())
		})
		It("Should drop malformed payloads without dying", func() {
			a := start("node-a", newStore("node-a"))
			b := start("node-b", newStore("node-b"))
			outsider := net.Route("outsider", nil)

			Expect(outsider.Publish(ctx, []byte("{definitely not json"))).To(Succeed())

			r, err := a.eng.Create(ctx, "Soup", "", "")
			Expect(err).ToNot(HaveOccurred())
			Expect(a.eng.PublishOne(ctx, r.ID)).To(Succeed())
			Eventually(all(b)).Should(HaveLen(1))
		})
		It("Should merge an unsolicited broadcast announce", func() {
			b := start("node-b", newStore("node-b"))
			outsider := net.Route("outsider", nil)

			msg := wire.NewAnnounce(wire.TargetAll(), []recipe.Recipe{
				{ID: 3, Name: "Stew", Publisher: "outsider", Shared: true},
			})
			payload, err := wire.Codec{}.Encode(msg)
			Expect(err).ToNot(HaveOccurred())
			Expect(outsider.Publish(ctx, payload)).To(Succeed())

			Eventually(all(b)).Should(HaveLen(1))
		})
	})

	Describe("Queries", func() {
		It("Should answer a broadcast query with shared recipes only", func() {
			a := start("node-a", newStore("node-a"))
			c := start("node-c", newStore("node-c"))

			shared, err := a.eng.Create(ctx, "Soup", "", "")
			Expect(err).ToNot(HaveOccurred())
			_, err = a.eng.Create(ctx, "Secret Sauce", "", "")
			Expect(err).ToNot(HaveOccurred())
			Expect(a.eng.PublishOne(ctx, shared.ID)).To(Succeed())

			Eventually(all(c)).Should(HaveLen(1))

			Expect(c.eng.Request(ctx, wire.TargetAll())).To(Succeed())
			Consistently(all(c), 100*time.Millisecond).Should(HaveLen(1))
			Expect(names(all(c)())).To(ConsistOf("Soup"))
		})
		It("Should collect the union of all responders' shared recipes", func() {
			a := start("node-a", newStore("node-a"))
			b := start("node-b", newStore("node-b"))
			c := start("node-c", newStore("node-c"))

			_, err := a.eng.Create(ctx, "Soup", "", "")
			Expect(err).ToNot(HaveOccurred())
			_, err = a.eng.PublishAll(ctx)
			Expect(err).ToNot(HaveOccurred())
			_, err = b.eng.Create(ctx, "Bread", "", "")
			Expect(err).ToNot(HaveOccurred())
			_, err = b.eng.PublishAll(ctx)
			Expect(err).ToNot(HaveOccurred())

			// The broadcasts above already reached c; a second request must
			// not duplicate anything.
			Expect(c.eng.Request(ctx, wire.TargetAll())).To(Succeed())
			Eventually(all(c)).Should(HaveLen(2))
			Expect(names(all(c)())).To(ConsistOf("Soup", "Bread"))
			Expect(c.eng.Request(ctx, wire.TargetAll())).To(Succeed())
			Consistently(all(c), 100*time.Millisecond).Should(HaveLen(2))
		})
		It("Should not answer a query addressed to a different peer", func() {
			storeX := newStore("node-x")
			_, err := storeX.Create("From X", "", "")
			Expect(err).ToNot(HaveOccurred())
			_, err = storeX.MarkShared(1)
			Expect(err).ToNot(HaveOccurred())
			storeY := newStore("node-y")
			_, err = storeY.Create("From Y", "", "")
			Expect(err).ToNot(HaveOccurred())
			_, err = storeY.MarkShared(1)
			Expect(err).ToNot(HaveOccurred())

			start("node-x", storeX)
			y := start("node-y", storeY)
			r := start("node-r", newStore("node-r"))

			Expect(r.eng.Request(ctx, wire.TargetPeer("node-x"))).To(Succeed())
			Eventually(all(r)).Should(HaveLen(1))
			Expect(names(all(r)())).To(ConsistOf("From X"))
			Consistently(all(r), 100*time.Millisecond).Should(HaveLen(1))
			Consistently(all(y), 100*time.Millisecond).Should(HaveLen(1))
		})
	})

	Describe("Shutdown", func() {
		It("Should stop cleanly when the context is cancelled", func() {
			a := start("node-a", newStore("node-a"))
			cancel()
			Eventually(a.errC).Should(Receive(BeNil()))
			Expect(a.eng.State()).To(Equal(engine.StateStopped))
		})
		It("Should stop cleanly when the transport closes its stream during shutdown", func() {
			a := start("node-a", newStore("node-a"))
			cancel()
			a.route.Close()
			Eventually(a.errC).Should(Receive(BeNil()))
			Expect(a.eng.State()).To(Equal(engine.StateStopped))
		})
		It("Should return ErrChannelClosed when the event stream ends", func() {
			a := start("node-a", newStore("node-a"))
			a.route.Close()
			var err error
			Eventually(a.errC).Should(Receive(&err))
			Expect(errors.Is(err, engine.ErrChannelClosed)).To(BeTrue())
			Expect(a.eng.State()).To(Equal(engine.StateStopped))
		})
		It("Should reject commands after stopping", func() {
			a := start("node-a", newStore("node-a"))
			a.route.Close()
			Eventually(a.errC).Should(Receive())
			_, err := a.eng.Create(context.Background(), "Soup", "", "")
			Expect(errors.Is(err, engine.ErrStopped)).To(BeTrue())
		})
	})

	Describe("ListPeers", func() {
		It("Should report the peers known to the directory", func() {
			a := start("node-a", newStore("node-a"))
			start("node-b", newStore("node-b"))
			peers, err := a.eng.ListPeers(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(peers).To(ConsistOf(peer.ID("node-b")))
		})
	})
})

// failingFS refuses writes on demand while leaving reads intact.
type failingFS struct {
	vfs.FS
	failWrites bool
}

func (f *failingFS) Create(name string) (vfs.File, error) {
	if f.failWrites {
		return nil, errors.New("disk full")
	}
	return f.FS.Create(name)
}
