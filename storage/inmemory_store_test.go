package storage_test

import (
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/beacon/storage"
)

var _ = Describe("storage / InmemoryStore", func() {
	It("starts empty", func() {
		store := storage.NewInmemoryStore()

		Expect(store.Len()).To(BeZero())

		value, err := store.Backup()
		Expect(err).To(Succeed())
		Expect(string(value)).To(Equal(`[]`))
	})

	Describe("Set() / Get()", func() {
		It("can read a key that is written", func() {
			store := storage.NewInmemoryStore()
			store.Set("foo", "bar")

			value, ok := store.Get("foo")
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal("bar"))
			Expect(store.Len()).To(Equal(1))
		})

		It("reports keys that were never set as missing", func() {
			store := storage.NewInmemoryStore()

			value, ok := store.Get("nope")
			Expect(ok).To(BeFalse())
			Expect(value).To(BeEmpty())
		})

		It("distinguishes an empty value from a missing key", func() {
			store := storage.NewInmemoryStore()
			store.Set("empty", "")

			value, ok := store.Get("empty")
			Expect(ok).To(BeTrue())
			Expect(value).To(BeEmpty())
		})

		It("overwrites previous values", func() {
			store := storage.NewInmemoryStore()
			store.Set("k", "v1")
			store.Set("k", "v2")

			value, ok := store.Get("k")
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal("v2"))
			Expect(store.Len()).To(Equal(1))
		})

		It("never exposes a value that was not written", func() {
			store := storage.NewInmemoryStore()

			const writers = 16
			written := make(map[string]bool, writers)
			for w := 0; w < writers; w++ {
				written[fmt.Sprintf("writer-%d", w)] = true
			}

			var wg sync.WaitGroup
			for w := 0; w < writers; w++ {
				wg.Add(2)

				go func(id int) {
					defer wg.Done()
					defer GinkgoRecover()

					for n := 0; n < 200; n++ {
						store.Set("shared", fmt.Sprintf("writer-%d", id))
					}
				}(w)

				go func() {
					defer wg.Done()
					defer GinkgoRecover()

					for n := 0; n < 200; n++ {
						if value, ok := store.Get("shared"); ok {
							Expect(written).To(HaveKey(value))
						}
					}
				}()
			}

			wg.Wait()

			value, ok := store.Get("shared")
			Expect(ok).To(BeTrue())
			Expect(written).To(HaveKey(value))
		})
	})

	Describe("Backup() / Restore()", func() {
		It("backs up entries sorted by key", func() {
			store := storage.NewInmemoryStore()
			store.Set("b", "2")
			store.Set("a.b*c", "1")

			value, err := store.Backup()
			Expect(err).To(Succeed())
			Expect(value).To(MatchJSON(`[{"key":"a.b*c","value":"1"},{"key":"b","value":"2"}]`))
		})

		It("restores what it backs up", func() {
			store := storage.NewInmemoryStore()
			store.Set("", "empty key")
			store.Set("line", "one\r\ntwo")
			store.Set("quote", `"quoted"`)

			backup, err := store.Backup()
			Expect(err).To(Succeed())

			restored := storage.NewInmemoryStore()
			restored.Set("stale", "gone")
			Expect(restored.Restore(backup)).To(Succeed())

			Expect(restored.Len()).To(Equal(3))
			for _, key := range []string{"", "line", "quote"} {
				want, _ := store.Get(key)
				got, ok := restored.Get(key)
				Expect(ok).To(BeTrue())
				Expect(got).To(Equal(want))
			}

			_, ok := restored.Get("stale")
			Expect(ok).To(BeFalse())
		})

		It("rejects documents that are not backups", func() {
			store := storage.NewInmemoryStore()
			store.Set("keep", "me")

			for _, doc := range []string{`not json`, `{"foo":"bar"}`, `[{"key":1,"value":"x"}]`} {
				err := store.Restore([]byte(doc))
				Expect(errors.Is(err, storage.ErrInvalidBackup)).To(BeTrue(), doc)
			}

			value, ok := store.Get("keep")
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal("me"))
		})
	})
})
