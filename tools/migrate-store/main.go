package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	awspkg "github.com/cate-nduta/Lash-Business-sub002/pkg/aws"
	ddb "github.com/cate-nduta/Lash-Business-sub002/pkg/dynamodb"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/database"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/repository"
)

// Copies the pipeline documents from MongoDB into the DynamoDB table.
func main() {
	var mongoURI, dbName, collection, table string
	var overwrite bool
	flag.StringVar(&mongoURI, "mongo", os.Getenv("MONGO_DB_URL"), "MongoDB URI")
	flag.StringVar(&dbName, "db", os.Getenv("MONGO_DB_NAME"), "MongoDB database name")
	flag.StringVar(&collection, "collection", "pipeline_documents", "MongoDB collection holding the documents")
	flag.StringVar(&table, "table", os.Getenv("DDB_TABLE_DOCUMENTS"), "DynamoDB table name")
	flag.BoolVar(&overwrite, "overwrite", false, "replace documents that already exist in DynamoDB")
	flag.Parse()

	if mongoURI == "" || dbName == "" {
		log.Fatal("MONGO_DB_URL and MONGO_DB_NAME must be set or provided via flags")
	}
	if table == "" {
		table = "PipelineDocuments"
	}

	ctx := context.Background()
	mclient, db, err := database.ConnectMongo(ctx, mongoURI, dbName)
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	defer database.DisconnectMongo(ctx, mclient)
	src := repository.NewMongoStore(db, collection)

	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}
	ddbClient := ddb.NewClientFromConfig(awsCfg)
	if created, err := ddb.EnsureTable(ctx, ddbClient, table, repository.DynamoHashKey); err != nil {
		log.Fatalf("dynamodb table: %v", err)
	} else if created {
		log.Printf("created table %s", table)
	}
	dst := repository.NewDynamoStore(ddbClient, table)

	// Documents the service does not know by name are copied too.
	ids, err := src.IDs(ctx)
	if err != nil {
		log.Fatalf("list documents: %v", err)
	}
	ids = mergeIDs(repository.AllCollections, ids)

	res, err := repository.CopyDocuments(ctx, src, dst, ids, overwrite)
	for _, id := range res.Skipped {
		log.Printf("skipped %s: already present in %s", id, table)
	}
	if err != nil {
		log.Fatalf("migration stopped after %d documents: %v", len(res.Copied), err)
	}
	fmt.Printf("Migration complete. copied=%d skipped=%d missing=%d\n", len(res.Copied), len(res.Skipped), len(res.Missing))
}

func mergeIDs(known, found []string) []string {
	seen := make(map[string]bool, len(known)+len(found))
	out := make([]string, 0, len(known)+len(found))
	for _, list := range [][]string{known, found} {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
