package model

import "context"

// AttachHashtag links hashtag to post pid. The same hashtag may be attached
// more than once.
func (s *Store) AttachHashtag(ctx context.Context, pid int64, hashtag string) error {
	_, err := s.exec(ctx, "attach hashtag",
		"INSERT INTO post_hashtags (post_id, hashtag) VALUES (?, ?)", pid, hashtag)
	return err
}

// PostHashtags returns the distinct hashtags of post pid.
func (s *Store) PostHashtags(ctx context.Context, pid int64) ([]string, error) {
	return s.queryStrings(ctx, "post hashtags",
		"SELECT DISTINCT hashtag FROM post_hashtags WHERE post_id = ? ORDER BY hashtag", pid)
}

// ListHashtags returns every hashtag in use.
func (s *Store) ListHashtags(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "list hashtags", "SELECT DISTINCT hashtag FROM post_hashtags ORDER BY hashtag")
}

// PopularHashtags returns at most n hashtags, most used first.
func (s *Store) PopularHashtags(ctx context.Context, n int) ([]string, error) {
	return s.queryStrings(ctx, "popular hashtags", `SELECT hashtag FROM post_hashtags
		GROUP BY hashtag ORDER BY COUNT(*) DESC, hashtag LIMIT ?`, n)
}

// HashtagPosts returns the posts carrying hashtag, newest first.
func (s *Store) HashtagPosts(ctx context.Context, hashtag string) ([]Post, error) {
	return s.queryPosts(ctx, "hashtag posts", postSelect+`
		WHERE p.id IN (SELECT post_id FROM post_hashtags WHERE hashtag = ?)`+OrderDesc.clause(), hashtag)
}

// RelatedHashtags returns at most n other hashtags used together with hashtag.
func (s *Store) RelatedHashtags(ctx context.Context, hashtag string, n int) ([]string, error) {
	return s.queryStrings(ctx, "related hashtags", `SELECT DISTINCT h1.hashtag FROM post_hashtags h1
		WHERE h1.hashtag <> ? AND EXISTS (
			SELECT 1 FROM post_hashtags h2 WHERE h2.post_id = h1.post_id AND h2.hashtag = ?)
		ORDER BY h1.hashtag LIMIT ?`, hashtag, hashtag, n)
}

func (s *Store) queryStrings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := s.query(ctx, op, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, storeErr(op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}
