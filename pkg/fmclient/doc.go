/*
Package fmclient creates FileMaker Data API clients.

New validates and normalizes an fmdata.Config and returns an fmdata.Client:

	client, err := fmclient.New(ctx, &fmdata.Config{
		Name:     "crm",
		Host:     "https://fms.example.com/",
		Database: "CRM",
		Username: "api",
		Password: os.Getenv("FM_PASSWORD"),
	})

Connections can also be read from configuration files with viper. LoadConfig
reads the keys below connections.<name>:

	connections:
	  crm:
	    host: fms.example.com
	    database: CRM
	    username: api
	    session_store: sqlite
	    session_store_path: /var/lib/app/sessions.db

Every key may be overridden from the environment, for example
FMDATA_CONNECTIONS_CRM_PASSWORD.

EndSession is HTTP middleware that logs out after each request for
connections that do not cache their session token.
*/
package fmclient
