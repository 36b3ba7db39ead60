package indexes

// DocumentPlan returns the indexes for the listening-history collection.
// Names are left to the driver so they match indexes an earlier import of
// the same collection already created.
func DocumentPlan(collection string) []Spec {
	std := func(fields ...Field) Spec {
		return Spec{Target: collection, Fields: fields}
	}

	return []Spec{
		// point lookups
		std(asc("spotify_track_uri")),
		std(asc("user.username")),
		std(asc("refs.track_id")),
		std(asc("refs.artist_id")),

		// time ranges
		std(desc("timestamp")),
		std(asc("user.username"), desc("timestamp")),
		std(asc("user.username"), asc("spotify_track_uri")),
		std(asc("track.artist"), desc("timestamp")),
		std(asc("album.name"), asc("track.artist")),
		std(asc("listening.skipped"), desc("timestamp")),

		// audio feature ranges
		std(asc("audio_features.danceability")),
		std(asc("audio_features.energy")),
		std(asc("audio_features.valence")),
		std(asc("audio_features.tempo")),
		std(asc("audio_features.danceability"), asc("audio_features.energy"), asc("audio_features.valence")),

		{Target: collection, Fields: []Field{desc("listening.completion_rate")}, Sparse: true},
		{Target: collection, Fields: []Field{desc("track.popularity")}, Sparse: true},

		{Target: collection, Fields: []Field{asc("artist.genres")}, Kind: KindArray},
		{Target: collection, Fields: []Field{asc("album.genres")}, Kind: KindArray},

		{
			Target: collection,
			Kind:   KindText,
			Fields: []Field{asc("track.name"), asc("track.artist"), asc("album.name"), asc("artist.name")},
		},
	}
}

// RelationalPlan returns the indexes for the normalized schema. Unique
// natural-key constraints are created by the schema itself.
func RelationalPlan() []Spec {
	return []Spec{
		{Name: "idx_users_username", Target: "users", Fields: []Field{asc("username")}},
		{Name: "idx_artists_name", Target: "artists", Fields: []Field{asc("name")}},
		{Name: "idx_albums_name", Target: "albums", Fields: []Field{asc("name")}},
		{Name: "idx_tracks_spotify_id", Target: "tracks", Fields: []Field{asc("spotify_track_id")}},
		{Name: "idx_tracks_album_id", Target: "tracks", Fields: []Field{asc("album_id")}},

		{Name: "idx_listening_history_user_id", Target: "listening_history", Fields: []Field{asc("user_id")}},
		{Name: "idx_listening_history_track_id", Target: "listening_history", Fields: []Field{asc("track_id")}},
		{Name: "idx_listening_history_played_at", Target: "listening_history", Fields: []Field{desc("played_at")}},
		{Name: "idx_listening_history_user_played", Target: "listening_history", Fields: []Field{asc("user_id"), desc("played_at")}},
		{Name: "idx_listening_history_completion", Target: "listening_history", Fields: []Field{asc("completion_rate")}, Sparse: true},

		{Name: "idx_audio_features_danceability", Target: "audio_features", Fields: []Field{asc("danceability")}},
		{Name: "idx_audio_features_energy", Target: "audio_features", Fields: []Field{asc("energy")}},
		{Name: "idx_audio_features_valence", Target: "audio_features", Fields: []Field{asc("valence")}},
		{Name: "idx_audio_features_tempo", Target: "audio_features", Fields: []Field{asc("tempo")}},

		{Name: "idx_track_artists_artist_id", Target: "track_artists", Fields: []Field{asc("artist_id")}},
		{Name: "idx_album_artists_artist_id", Target: "album_artists", Fields: []Field{asc("artist_id")}},

		{Name: "idx_artists_genres", Target: "artists", Fields: []Field{asc("genres")}, Kind: KindArray},
		{Name: "idx_albums_genres", Target: "albums", Fields: []Field{asc("genres")}, Kind: KindArray},

		{Name: "idx_artists_name_fts", Target: "artists", Fields: []Field{asc("name")}, Kind: KindText},
		{Name: "idx_albums_name_fts", Target: "albums", Fields: []Field{asc("name")}, Kind: KindText},
		{Name: "idx_tracks_name_fts", Target: "tracks", Fields: []Field{asc("name")}, Kind: KindText},
	}
}
