/*
Copyright 2024 Alexandre Mahdhaoui

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package httputil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// ShutdownTimeout bounds the graceful shutdown of each server.
const ShutdownTimeout = 10 * time.Second

// Serve runs every server in its own goroutine until ctx is done, then shuts
// them down gracefully. The returned channel receives the first error a
// server stopped with, or nil, once every server has returned.
func Serve(ctx context.Context, log logr.Logger, servers map[string]*http.Server) <-chan error {
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)

	// 1. Run the servers.
	for name, server := range servers {
		// sets the base context to be the caller's context.
		server.BaseContext = func(_ net.Listener) context.Context {
			return ctx
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			log.Info("serving", "server", name, "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(err, "server stopped", "server", name)
				once.Do(func() { firstErr = fmt.Errorf("%s: %w", name, err) })
			}
		}()
	}

	// 2. Gracefully shutdown each server once ctx is done.
	go func() {
		<-ctx.Done()

		for name, server := range servers {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(err, "failed to shut down server", "server", name)
			}
			cancel()
		}
	}()

	// 3. Report once every server returned.
	done := make(chan error, 1)
	go func() {
		wg.Wait()
		done <- firstErr
		close(done)
	}()

	return done
}
