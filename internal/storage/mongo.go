package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"pagebuilder/internal/domain"
)

// MongoPageStore keeps one document per page in a collection.
type MongoPageStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoSection struct {
	Type      string `bson:"type"`
	Content   string `bson:"content"`
	IsVisible bool   `bson:"isVisible"`
}

type mongoPage struct {
	ID          string         `bson:"_id"`
	Title       string         `bson:"title"`
	Slug        string         `bson:"slug"`
	IsPublished bool           `bson:"isPublished"`
	Sections    []mongoSection `bson:"sections"`
	UpdatedAt   time.Time      `bson:"updatedAt"`
}

// OpenMongo connects to uri and uses database.collection for pages.
func OpenMongo(ctx context.Context, uri, database, collection string) (*MongoPageStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	if collection == "" {
		collection = "pages"
	}
	return &MongoPageStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

func (s *MongoPageStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoPageStore) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	var doc mongoPage
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrPageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	return doc.toPage(), nil
}

func (s *MongoPageStore) ListPages(ctx context.Context) ([]domain.Page, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "title", Value: 1}}).
		SetProjection(bson.D{{Key: "sections", Value: 0}})
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoPage
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	pages := make([]domain.Page, 0, len(docs))
	for _, d := range docs {
		pages = append(pages, *d.toPage())
	}
	return pages, nil
}

func (s *MongoPageStore) CreatePage(ctx context.Context, p *domain.Page) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	doc := mongoPage{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		IsPublished: p.IsPublished,
		Sections:    toMongoSections(p.Sections),
		UpdatedAt:   p.UpdatedAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	return nil
}

func (s *MongoPageStore) SaveSections(ctx context.Context, pageID string, sections []domain.Section) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "sections", Value: toMongoSections(sections)},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}}
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: pageID}}, update)
	if err != nil {
		return fmt.Errorf("save sections: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrPageNotFound
	}
	return nil
}

func toMongoSections(sections []domain.Section) []mongoSection {
	out := make([]mongoSection, 0, len(sections))
	for _, s := range sections {
		out = append(out, mongoSection{Type: s.Type, Content: string(s.Content), IsVisible: s.IsVisible})
	}
	return out
}

func (d mongoPage) toPage() *domain.Page {
	p := &domain.Page{
		ID:          d.ID,
		Title:       d.Title,
		Slug:        d.Slug,
		IsPublished: d.IsPublished,
		UpdatedAt:   d.UpdatedAt,
		Sections:    make([]domain.Section, 0, len(d.Sections)),
	}
	for _, s := range d.Sections {
		p.Sections = append(p.Sections, domain.Section{Type: s.Type, Content: []byte(s.Content), IsVisible: s.IsVisible})
	}
	return p
}
