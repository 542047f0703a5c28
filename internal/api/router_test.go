package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"weibalance/internal/api"
	"weibalance/internal/api/handlers"
	"weibalance/internal/jsonrpc"
	"weibalance/internal/models"
	"weibalance/internal/upstream"
)

type fakeFetcher struct {
	calls atomic.Int32
	fetch func(ctx context.Context, address common.Address) (*big.Int, error)
}

func (f *fakeFetcher) FetchBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	f.calls.Add(1)
	return f.fetch(ctx, address)
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) string {
	var body map[string]string
	Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
	return body["error"]
}

var _ = Describe("Router", func() {
	var (
		fetcher *fakeFetcher
		engine  http.Handler
		timeout time.Duration
	)

	BeforeEach(func() {
		timeout = time.Second
		fetcher = &fakeFetcher{
			fetch: func(ctx context.Context, address common.Address) (*big.Int, error) {
				wei, _ := new(big.Int).SetString("1500000000000000000", 10)
				return wei, nil
			},
		}
	})

	JustBeforeEach(func() {
		engine = api.NewRouter(fetcher, timeout, zerolog.Nop()).Engine()
	})

	Describe("GET /", func() {
		It("should return the greeting", func() {
			w := get(engine, "/")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(Equal(handlers.RootGreeting))
			Expect(fetcher.calls.Load()).To(BeZero())
		})
	})

	Describe("GET /balance/:address", func() {
		It("should return the balance with checksummed address", func() {
			w := get(engine, "/balance/0x8ba1f109551bd432803012645ac136ddd64dba72")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))

			var body models.Balance
			Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(Equal(models.Balance{
				Address: "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
				Wei:     "1500000000000000000",
				Balance: "1",
				Ether:   "1.5",
			}))
		})

		It("should accept addresses without the 0x prefix", func() {
			w := get(engine, "/balance/8ba1f109551bd432803012645ac136ddd64dba72")
			Expect(w.Code).To(Equal(http.StatusOK))
		})

		It("should serialize large balances as exact strings", func() {
			maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
			fetcher.fetch = func(ctx context.Context, address common.Address) (*big.Int, error) {
				return maxUint256, nil
			}

			w := get(engine, "/balance/0x0000000000000000000000000000000000000001")
			Expect(w.Code).To(Equal(http.StatusOK))

			var body map[string]interface{}
			Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
			Expect(body["wei"]).To(Equal(maxUint256.String()))
		})

		DescribeTable("should reject malformed addresses before fetching",
			func(address string) {
				w := get(engine, "/balance/"+address)
				Expect(w.Code).To(Equal(http.StatusBadRequest))
				Expect(decodeError(w)).To(ContainSubstring("invalid address"))
				Expect(fetcher.calls.Load()).To(BeZero())
			},
			Entry("too short", "0x123"),
			Entry("not hex", "not-an-address"),
			Entry("one byte too long", "0x8ba1f109551bd432803012645ac136ddd64dba7200"),
			Entry("non-hex characters", "0x8ba1f109551bd432803012645ac136ddd64dbazz"),
		)

		DescribeTable("should map fetch errors to statuses",
			func(fetchErr error, status int, message string) {
				fetcher.fetch = func(ctx context.Context, address common.Address) (*big.Int, error) {
					return nil, fetchErr
				}

				w := get(engine, "/balance/0x8ba1f109551bd432803012645ac136ddd64dba72")
				Expect(w.Code).To(Equal(status))
				Expect(decodeError(w)).To(Equal(message))
			},
			Entry("missing endpoint", upstream.ErrConfiguration,
				http.StatusInternalServerError, "rpc endpoint is not configured"),
			Entry("unreachable endpoint", &upstream.ConnectionError{Endpoint: "ws://node", Err: errors.New("connection refused")},
				http.StatusBadGateway, "rpc endpoint unreachable"),
			Entry("node error", &upstream.RPCError{Method: upstream.MethodGetBalance, Err: jsonrpc.NewError(-32000, "header not found")},
				http.StatusBadGateway, "rpc call failed"),
			Entry("timeout", fmt.Errorf("%w: %w", context.DeadlineExceeded, &upstream.RPCError{Method: upstream.MethodGetBalance, Err: context.DeadlineExceeded}),
				http.StatusGatewayTimeout, "rpc endpoint timed out"),
			Entry("unknown", errors.New("boom"),
				http.StatusInternalServerError, "internal server error"),
		)

		Context("with a hanging node", func() {
			BeforeEach(func() {
				timeout = 50 * time.Millisecond
				fetcher.fetch = func(ctx context.Context, address common.Address) (*big.Int, error) {
					<-ctx.Done()
					return nil, ctx.Err()
				}
			})

			It("should time out within the request bound", func() {
				start := time.Now()
				w := get(engine, "/balance/0x8ba1f109551bd432803012645ac136ddd64dba72")
				Expect(w.Code).To(Equal(http.StatusGatewayTimeout))
				Expect(time.Since(start)).To(BeNumerically("<", time.Second))
			})
		})

		Context("with a panicking fetcher", func() {
			BeforeEach(func() {
				fetcher.fetch = func(ctx context.Context, address common.Address) (*big.Int, error) {
					panic("unexpected")
				}
			})

			It("should recover with a JSON 500", func() {
				w := get(engine, "/balance/0x8ba1f109551bd432803012645ac136ddd64dba72")
				Expect(w.Code).To(Equal(http.StatusInternalServerError))
				Expect(decodeError(w)).To(Equal("internal server error"))
			})
		})

		Context("with concurrent requests", func() {
			BeforeEach(func() {
				fetcher.fetch = func(ctx context.Context, address common.Address) (*big.Int, error) {
					time.Sleep(5 * time.Millisecond)
					return new(big.Int).SetBytes(address.Bytes()), nil
				}
			})

			It("should answer each request for its own address", func() {
				var wg sync.WaitGroup
				results := make(chan error, 40)
				for i := 1; i <= 20; i++ {
					wg.Add(2)
					go func(i int) {
						defer wg.Done()
						address := common.BigToAddress(big.NewInt(int64(i)))
						w := get(engine, "/balance/"+address.Hex())
						var body models.Balance
						if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
							results <- err
							return
						}
						if body.Address != address.Hex() || body.Wei != fmt.Sprint(i) {
							results <- fmt.Errorf("request %d got %+v", i, body)
						}
					}(i)
					go func() {
						defer wg.Done()
						if w := get(engine, "/"); w.Code != http.StatusOK || w.Body.String() != handlers.RootGreeting {
							results <- fmt.Errorf("GET / returned %d %q", w.Code, w.Body.String())
						}
					}()
				}
				wg.Wait()
				close(results)
				for err := range results {
					Expect(err).NotTo(HaveOccurred())
				}
			})
		})

		Context("with an unreachable endpoint", func() {
			BeforeEach(func() {
				ln, err := net.Listen("tcp", "127.0.0.1:0")
				Expect(err).NotTo(HaveOccurred())
				addr := ln.Addr().String()
				Expect(ln.Close()).To(Succeed())

				timeout = 5 * time.Second
				dialing := upstream.NewBalanceFetcher("ws://"+addr, zerolog.Nop())
				fetcher.fetch = dialing.FetchBalance
			})

			It("should fail with a 5xx response in bounded time", func() {
				start := time.Now()
				w := get(engine, "/balance/0x8ba1f109551bd432803012645ac136ddd64dba72")
				Expect(w.Code).To(Equal(http.StatusBadGateway))
				Expect(time.Since(start)).To(BeNumerically("<", 5*time.Second))
			})
		})
	})

	Describe("middleware", func() {
		It("should answer unknown routes with JSON 404", func() {
			w := get(engine, "/nope")
			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(decodeError(w)).To(Equal("not found"))
		})

		It("should answer CORS preflight", func() {
			req := httptest.NewRequest(http.MethodOptions, "/balance/0x8ba1f109551bd432803012645ac136ddd64dba72", nil)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			Expect(w.Code).To(Equal(http.StatusNoContent))
			Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})
})
