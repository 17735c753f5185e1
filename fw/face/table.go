/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package face

import (
	"slices"

	"github.com/named-data/ndnfw/fw/core"
)

// Table is an insertion-ordered set of faces, indexed by face ID.
// It is not safe for concurrent use; its owner serializes access.
type Table struct {
	name  string
	faces []Face
	byID  map[uint64]Face
}

// MakeTable creates an empty table. The name is used in logs.
func MakeTable(name string) *Table {
	return &Table{name: name, byID: make(map[uint64]Face)}
}

func (t *Table) String() string {
	return t.name
}

// Add appends a face. It returns false if the face ID is already present.
func (t *Table) Add(face Face) bool {
	if _, ok := t.byID[face.FaceID()]; ok {
		return false
	}
	t.faces = append(t.faces, face)
	t.byID[face.FaceID()] = face
	core.Log.Debug(t, "Registered face", "faceid", face.FaceID(), "endpoint", face.Endpoint())
	return true
}

// Get gets the face with the specified ID (if any).
func (t *Table) Get(id uint64) Face {
	return t.byID[id]
}

// GetByEndpoint gets the face with the specified remote endpoint (if any).
func (t *Table) GetByEndpoint(endpoint string) Face {
	for _, face := range t.faces {
		if face.Endpoint() == endpoint {
			return face
		}
	}
	return nil
}

// GetAll returns the faces in insertion order. The slice must not be modified.
func (t *Table) GetAll() []Face {
	return t.faces
}

// Endpoints returns the remote endpoints in insertion order.
func (t *Table) Endpoints() []string {
	endpoints := make([]string, 0, len(t.faces))
	for _, face := range t.faces {
		endpoints = append(endpoints, face.Endpoint())
	}
	return endpoints
}

func (t *Table) Len() int {
	return len(t.faces)
}

// Remove removes a face by ID. It returns the removed face, or nil.
func (t *Table) Remove(id uint64) Face {
	if _, ok := t.byID[id]; !ok {
		return nil
	}
	delete(t.byID, id)

	i := slices.IndexFunc(t.faces, func(f Face) bool { return f.FaceID() == id })
	if i < 0 {
		return nil
	}
	face := t.faces[i]
	// Copy so slices previously returned by GetAll stay intact
	t.faces = slices.Concat(t.faces[:i], t.faces[i+1:])
	core.Log.Info(t, "Unregistered face", "faceid", id)
	return face
}
