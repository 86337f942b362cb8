/*
 * Copyright 2026 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package backend provides the backend implementation of the sync server.
// It owns the database and the in-memory coordination of the stores: the
// per-store locks and the fan-out to live pullers.
package backend

import (
	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/internal/metrics/prometheus"
	"github.com/yorkie-team/livesync/pkg/locker"
	"github.com/yorkie-team/livesync/server/backend/database"
	memdb "github.com/yorkie-team/livesync/server/backend/database/memory"
	"github.com/yorkie-team/livesync/server/backend/database/mongo"
	"github.com/yorkie-team/livesync/server/backend/pubsub"
)

// Backend manages the sync server's backend such as Database and the
// per-store coordination.
type Backend struct {
	Config *Config

	// DB is the database instance.
	DB database.Database

	// Lockers serializes the changes of a store.
	Lockers *locker.Locker

	// PubSub is used to publish store changes to live pullers.
	PubSub *pubsub.PubSub

	// Metrics is used to expose metrics.
	Metrics *prometheus.Metrics
}

// New creates a new instance of Backend. When mongoConf is nil the events
// are kept in memory.
func New(
	conf *Config,
	mongoConf *mongo.Config,
	metrics *prometheus.Metrics,
) (*Backend, error) {
	var db database.Database
	var err error
	if mongoConf != nil {
		db, err = mongo.Dial(mongoConf)
	} else {
		db, err = memdb.New()
	}
	if err != nil {
		return nil, err
	}

	dbInfo := "memory"
	if mongoConf != nil {
		dbInfo = mongoConf.ConnectionURI
	}
	logging.DefaultLogger().Infof("backend created: db: %s", dbInfo)

	return &Backend{
		Config:  conf,
		DB:      db,
		Lockers: locker.New(),
		PubSub:  pubsub.New(conf.SubscriptionBufferSize),
		Metrics: metrics,
	}, nil
}

// Shutdown closes all resources of this instance.
func (b *Backend) Shutdown() error {
	if err := b.DB.Close(); err != nil {
		return err
	}

	logging.DefaultLogger().Infof("backend stopped")
	return nil
}
