/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

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

package util

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/bbva/treelog/log"
)

// AwaitTermSignal blocks until a standard termination signal arrives,
// then runs the given function.
func AwaitTermSignal(closeFn func() error) {

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signals
	log.Infof("Signal received: %v", sig)

	if err := closeFn(); err != nil {
		log.Errorf("Error stopping: %v", err)
	}
}
