// Package fmdata provides types, interfaces, and a query builder for the
// FileMaker Data API.
//
// # Overview
//
// The fmdata package defines the Query builder, the wire types returned by
// the Data API (Record, DataInfo, WriteResponse), the typed APIError and the
// SessionStore capability used to cache session tokens. A concrete client is
// provided by the fmclient package, which wires configuration, transport and
// session handling. Most consumers construct a client with fmclient and then
// start queries with Client.Layout.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/fmdata/pkg/fmclient"
//	  "github.com/fivetwenty-io/fmdata/pkg/fmdata"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := fmclient.New(ctx, &fmdata.Config{
//	    Name:     "crm",
//	    Host:     "fms.example.com",
//	    Database: "CRM",
//	    Username: "api",
//	    Password: "secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  records, err := cli.Layout("Contacts").
//	    Where("City", "Boston").
//	    OrWhereOp("Age", ">", 65).
//	    OrderBy("LastName", "asc").
//	    Limit(50).
//	    Get(ctx)
//	  if err != nil { log.Fatal(err) }
//	  _ = records
//	}
//
// # Find requests
//
// Criteria added with Where join the open find request (AND). OrWhere opens a
// new request (OR). WhereNot opens an omit request that removes its matches
// from the found set. WhereIn is expanded when the query is compiled: each
// value becomes its own request, cross-joined with the other criteria of the
// request it was added to.
//
// # Errors
//
// Remote failures are returned as *APIError. Reads treat code 401 (no records
// match) as an empty result and deletes treat 101 (record missing) as zero
// rows affected. A 952 (invalid session) is recovered once by logging in
// again and resending the request.
package fmdata
