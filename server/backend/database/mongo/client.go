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

// Package mongo implements database interfaces using MongoDB.
package mongo

import (
	"context"
	"fmt"
	gotime "time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/server/backend/database"
)

// Client is a client that connects to Mongo DB and reads or saves the events
// of stores.
type Client struct {
	config *Config
	client *mongo.Client
}

// Dial creates an instance of Client and dials the given MongoDB.
func Dial(conf *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.ConnectionURI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(ctx, conf.ParsePingTimeout())
	defer cancelPing()

	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	if err := ensureIndexes(ctx, client.Database(conf.Database)); err != nil {
		return nil, err
	}

	logging.DefaultLogger().Infof("MongoDB connected, URI: %s, DB: %s", conf.ConnectionURI, conf.Database)

	return &Client{
		config: conf,
		client: client,
	}, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	if err := c.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("close mongo client: %w", err)
	}

	return nil
}

func (c *Client) collection(name string) *mongo.Collection {
	return c.client.Database(c.config.Database).Collection(name)
}

// FindOrCreateStoreInfo returns the store of the given id, creating an empty
// one if needed.
func (c *Client) FindOrCreateStoreInfo(ctx context.Context, storeID string) (*database.StoreInfo, error) {
	now := gotime.Now()
	result := c.collection(ColStores).FindOneAndUpdate(ctx, bson.M{
		"_id": storeID,
	}, bson.M{
		"$setOnInsert": bson.M{
			"backend_id": uuid.New().String(),
			"head":       int64(0),
			"epoch":      int64(0),
			"rewrites":   bson.A{},
			"created_at": now,
			"updated_at": now,
		},
	}, options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After))

	info := &database.StoreInfo{}
	if err := result.Decode(info); err != nil {
		return nil, fmt.Errorf("find or create store of %s: %w", storeID, err)
	}
	return info, nil
}

// FindStoreInfo returns the store of the given id.
func (c *Client) FindStoreInfo(ctx context.Context, storeID string) (*database.StoreInfo, error) {
	result := c.collection(ColStores).FindOne(ctx, bson.M{"_id": storeID})

	info := &database.StoreInfo{}
	if err := result.Decode(info); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%s: %w", storeID, database.ErrStoreNotFound)
		}
		return nil, fmt.Errorf("find store of %s: %w", storeID, err)
	}
	return info, nil
}

// ListStoreInfos returns every store ordered by id.
func (c *Client) ListStoreInfos(ctx context.Context) ([]*database.StoreInfo, error) {
	cursor, err := c.collection(ColStores).Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}

	var infos []*database.StoreInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return infos, nil
}

// AppendEventInfos appends the given events if the head of the store is
// still expectedHead. The head is moved first so that a concurrent appender
// fails on it before inserting anything.
func (c *Client) AppendEventInfos(
	ctx context.Context,
	storeID string,
	expectedHead uint64,
	events []*database.EventInfo,
) (*database.StoreInfo, error) {
	if len(events) == 0 {
		return c.FindStoreInfo(ctx, storeID)
	}

	info, err := c.FindStoreInfo(ctx, storeID)
	if err != nil {
		return nil, err
	}

	now := gotime.Now()
	newHead := events[len(events)-1].Global
	res, err := c.collection(ColStores).UpdateOne(ctx, bson.M{
		"_id":  storeID,
		"head": int64(expectedHead),
	}, bson.M{
		"$set": bson.M{"head": int64(newHead), "updated_at": now},
	})
	if err != nil {
		return nil, fmt.Errorf("update head of %s: %w", storeID, err)
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("head of %s is not %d: %w", storeID, expectedHead, database.ErrConflictOnUpdate)
	}

	docs := make([]interface{}, 0, len(events))
	for _, e := range events {
		stored := e.DeepCopy()
		stored.StoreID = storeID
		stored.Epoch = info.Epoch
		stored.CreatedAt = now
		docs = append(docs, stored)
	}
	if _, err := c.collection(ColEvents).InsertMany(ctx, docs); err != nil {
		if _, revertErr := c.collection(ColStores).UpdateOne(ctx, bson.M{
			"_id":  storeID,
			"head": int64(newHead),
		}, bson.M{
			"$set": bson.M{"head": int64(expectedHead)},
		}); revertErr != nil {
			logging.DefaultLogger().Errorf("revert head of %s: %v", storeID, revertErr)
		}
		return nil, fmt.Errorf("insert events of %s: %w", storeID, err)
	}

	info.Head = newHead
	info.UpdatedAt = now
	return info, nil
}

// ReplaceEventInfosFrom replaces the events from the given global number on
// with the given ones and bumps the epoch of the store.
func (c *Client) ReplaceEventInfosFrom(
	ctx context.Context,
	storeID string,
	from uint64,
	events []*database.EventInfo,
) (*database.StoreInfo, error) {
	info, err := c.FindStoreInfo(ctx, storeID)
	if err != nil {
		return nil, err
	}

	if _, err := c.collection(ColEvents).DeleteMany(ctx, bson.M{
		"store_id": storeID,
		"global":   bson.M{"$gte": int64(from)},
	}); err != nil {
		return nil, fmt.Errorf("delete events of %s: %w", storeID, err)
	}

	head := uint64(0)
	if from > 0 {
		head = from - 1
	}
	if len(events) > 0 {
		head = events[len(events)-1].Global
	}

	now := gotime.Now()
	epoch := info.Rewrite(from, head, now)
	if len(events) > 0 {
		docs := make([]interface{}, 0, len(events))
		for _, e := range events {
			stored := e.DeepCopy()
			stored.StoreID = storeID
			stored.Epoch = epoch
			stored.CreatedAt = now
			docs = append(docs, stored)
		}
		if _, err := c.collection(ColEvents).InsertMany(ctx, docs); err != nil {
			return nil, fmt.Errorf("insert events of %s: %w", storeID, err)
		}
	}

	if _, err := c.collection(ColStores).UpdateOne(ctx, bson.M{"_id": storeID}, bson.M{
		"$set": bson.M{
			"head":       int64(info.Head),
			"epoch":      info.Epoch,
			"rewrites":   info.Rewrites,
			"updated_at": now,
		},
	}); err != nil {
		return nil, fmt.Errorf("update store of %s: %w", storeID, err)
	}

	return info, nil
}

// FindEventInfosAfter returns at most limit events whose global number is
// greater than after.
func (c *Client) FindEventInfosAfter(
	ctx context.Context,
	storeID string,
	after uint64,
	limit int,
) ([]*database.EventInfo, error) {
	opts := options.Find().SetSort(bson.M{"global": 1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := c.collection(ColEvents).Find(ctx, bson.M{
		"store_id": storeID,
		"global":   bson.M{"$gt": int64(after)},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("find events of %s: %w", storeID, err)
	}

	var infos []*database.EventInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("fetch events of %s: %w", storeID, err)
	}
	return infos, nil
}
