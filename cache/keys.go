package cache

import (
	"strconv"
)

// Key layout shared by the services. Kinds are model object types
// ("post", "tasted_record", "bean").

func SessionKey(token string) string { return "session:" + token }

// ViewKey marks one viewer having opened one object within the view TTL.
func ViewKey(kind string, objectID int64, viewer string) string {
	return "view:" + kind + ":" + strconv.FormatInt(objectID, 10) + ":" + viewer
}

// ViewedKey is the set of object ids a user has already seen.
func ViewedKey(kind string, userID int64) string {
	return "viewed:" + kind + ":" + strconv.FormatInt(userID, 10)
}

func TopPostsKey(subject string) string {
	if subject == "" {
		subject = "all"
	}
	return "ranking:posts:" + subject
}

const TopBeansKey = "ranking:beans"

// TopBeansWarmedKey marks a finished bean warm, so an empty week is not
// recomputed on every read.
const TopBeansWarmedKey = "ranking:beans:warmed"

func RecentSearchKey(userID int64) string {
	return "search:recent:" + strconv.FormatInt(userID, 10)
}

func NotifyChannel(userID int64) string {
	return "notify:" + strconv.FormatInt(userID, 10)
}
